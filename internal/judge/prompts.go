package judge

const transcriptJudgeSystem = `You are evaluating a dialogue TRANSCRIPT generated by a DOCTOR chatbot and a PATIENT LLM bot, based on a set of criteria.
Your evaluation will consist of answering specific questions about the DOCTOR/PATIENT bot with 1 (Yes) and 0 (No) responses.
The DOCTOR bot quality should not depend on the PATIENT.
The PATIENT bot quality however does depend on its own prompt (PATIENT_PROMPT).
%s

CRITERIA (column name, then a description):
%s`

const transcriptOutputFormat = `FORMAT: In separate lines, do the following:
1. first, state the criteria you're evaluating
2. second, make a brief assessment of the criteria on the TRANSCRIPT to justify your decision. After explaining your assessment/reasoning, end the line with 'criteria passed hence the score is 1' or 'criteria failed hence the score is 0'.
3. third, state each criteria's value (1 or 0).
Additionally, if there are issues that result in a 0, be very specific in your assessment portion and please refer to texts in the TRANSCRIPT that is the offender. If it's a 1 (yes), keep your assessment very short.
Lastly, after all criterias are evaluated, in one last new line, please provide any short additional observations or suggestions for improvement (2 sentences), but do not repeat evaluation points previously made.
For example:

patient_name,"The DOCTOR greeted the PATIENT by name; criteria passed hence the score is 1",1
dyspnea,"The DOCTOR was successful in getting a confirmation from the PATIENT that they don't have dyspnea or shortness of breath; criteria passed hence the score is 1",1
pnd,"The DOCTOR did not ask about PND in the conversation; criteria failed hence the score is 0",0
sympathetic_patient,"The DOCTOR ignored PATIENT after PATIENT writes 'I am feeling light-headed'; criteria failed hence the score is 0",0
consistent_symptoms,"The PATIENT says 'I have chest pain' but later says 'I have no chest pain'; criteria failed hence the score is 0",0
OBSERVATION:write your two-sentence observation/improvement here
`

const transcriptJudgeHuman = "PATIENT_PROMPT: %s\n\nTRANSCRIPT: %s"

const summaryJudgeSystem = `You are evaluating a summarization engine that has generated a SUMMARY of a doctor-patient dialogue TRANSCRIPT based on a set of criteria. Your evaluation will consist of answering specific questions about the SUMMARY with 1 (Yes) and 0 (No) responses. The SUMMARY quality will depend on the TRANSCRIPT.
%s

CRITERIA (CSV column names, then a description):
%s

ADDITIONAL INFORMATION: the following are common heart failure symptoms and their descriptions. Any mention of these medical terms or similar phrases do not count as a "diagnosis" in the context of this evaluation. If the patient claims some of these phrases for themselves (e.g. "I need to prop myself up with pillows"), it is a symptom and not a diagnosis, and the symptom should have been included in the symptoms list (e.g. "orthopnea" or "needs pillows" should be present).
- Dyspnea: shortness of breath, whether occurring at rest, walking, or climbing stairs
- Paroxysmal Nocturnal Dyspnea (PND): sudden shortness of breath that wakes patient up at night
- Orthopnea: needing to prop up with pillows to breathe comfortably while lying down
- Edema: swelling in your ankles or legs
- Nocturnal Cough: a cough especially at night
- Chest Pain
- Fatigue and Mental Status: feeling more tired than usual ("feeling tired" and "fatigue" are synonyms), or experience sudden changes in mental clarity (or mental status)

ADDITIONAL INFORMATION: "Do you need to prop yourself up with pillows to breathe comfortably" is a direct question on orthopnea (which is a term that patients don't understand), and as such, "Orthopnea" and "needing to prop up with pillows" are considered as one and the same.
- Orthopnea is often omitted in 'current_symptoms' by the summarizer when a patient claims they need pillows to prop up while laying flat; when this happens, it is a criteria violation for ` + "`current_symptoms_agree`" + `.
- However, if the 'current_symptoms' section mentions 'orthopnea' but the TRANSCRIPT says only needing pillows (no explicit mention of 'orthopnea'), it is not a criteria violation (keep the score as 1).
`

const summaryOutputFormat = `In separate lines, first make a brief assessment of the criteria on the SUMMARY to justify your decision, then state each criteria's value (1 or 0). When explaining your assessment/reasoning, if there are issues that result in a 0, be very specific and please refer to texts in SUMMARY that is the offender. If it's a 1 (yes/no issues), keep your assessment very short.
Lastly, in one last new line, please provide any short additional observations or suggestions for improvement (2 sentences), but do not repeat evaluation points previously made. Be specific with examples, and be concise with words.
For example:
intro_patient_present,"Patient name is introduced; criteria passed hence the score is 1",1
current_symptoms_present,"No symptoms are reported in SUMMARY; criteria failed hence the score is 0",0
orthopnea_agree,"Patient needs pillows to prop up while laying flat; current_symptoms listed: 'dyspnea, fatigue'; 'orthopnea' is not listed; criteria failed hence the score is 0",0
vital_signs_agree,"Heart rate in SUMMARY is 130, but in TRANSCRIPT it's 131; criteria failed hence the score is 0",0
current_symptoms_agree,"Current symptoms in SUMMARY match TRANSCRIPT; criteria passed hence the score is 1",1
medications_agree,"Vitamins reported in SUMMARY is not in TRANSCRIPT; criteria failed hence the score is 0",0
OBSERVATION:write your two-sentence observation/improvement here
`

const summaryJudgeHuman = "TRANSCRIPT: %s\n\nSUMMARY: %s"

const transcriptImprovementPrompt = "You are tasked with improving a doctor conversational chatbot prompt, which has been interacting with (synthetic) heart failure patients. You will be given the original prompts (which exists in two parts: SYSTEM_MESSAGE_DOCTOR and AI_GUIDANCE_DOCTOR) and a list of learnings generated from an automated evaluation of the chatbot's transcripts. Your task is to provide a revised prompt that addresses the learnings. Return your revised prompt as a string.\n\n" +
	"SYSTEM_MESSAGE_DOCTOR: ```%s```\n" +
	"AI_GUIDANCE_DOCTOR: ```%s```\n"

// DefaultTranscriptInstructions are appended to the transcript improvement
// request.
const DefaultTranscriptInstructions = `Focus on improving the quality of the conversation and the patient experience. After generating the new prompt, please summarize the key changes you made to the prompt under a "KEY CHANGES" section in the response.`

const summaryImprovementPrompt = "You are tasked with improving a summarization engine's prompt, which generates summaries of doctor-patient dialogues. You will be given a list of learnings generated from an automated evaluation of the engine's summaries. Your task is to provide a revised prompt that addresses the learnings. Return your revised prompt as a string.\n\n" +
	"ORIGINAL PROMPT:\n```\n%s\n```\n"

// DefaultSummaryInstructions are appended to the summary improvement
// request.
const DefaultSummaryInstructions = `Additionally, apply JSON best practices to keep the outputs processable by downstream systems.
Before generating the new prompt, summarize a "KEY GOALS" section for the prompt improvement for what you're about to do, pulling in specific examples from the learnings.
Then, write a "REVISED PROMPT" section making changes to ORIGINAL PROMPT. Be specific on what the new prompt should do by referring to the learnings.
After generating the new prompt, please summarize the key changes you made to the prompt under a "KEY CHANGES" section in the response.`
