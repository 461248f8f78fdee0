package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"reco-chatbot/internal/core"
	"reco-chatbot/internal/db"
	"reco-chatbot/internal/report"
	"reco-chatbot/pkg"
)

var (
	chatName      string
	chatSummarize bool
)

// readLine asks the person at the terminal for their next message.  Tests
// replace it.
var readLine = func(label string) (string, error) {
	p := promptui.Prompt{Label: label}
	return p.Run()
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Play the patient in a check-in from the terminal",
	Long: `Starts a check-in with the doctor agent and reads your replies from the
terminal.  When the doctor detects a goodbye it asks whether to end the
check-in; answering yes ends it, as does Ctrl-C/Ctrl-D.  The summary is
printed afterwards.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatName, "name", "", "patient name the doctor should use")
	chatCmd.Flags().BoolVar(&chatSummarize, "summarize", true, "print a summary when the check-in ends")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmdContext(cmd)
	out := cmd.OutOrStdout()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	system := core.DoctorSystemMessage
	if chatName != "" {
		system += "\nThe patient's name is " + chatName + ".\n"
	}
	doctor, err := core.NewAgent(ctx, newClient(cfg.LLM.ChatModel, cfg.LLM.ChatTemperature), db.NewMemoryStore(),
		core.WithSystemMessage(system),
		core.WithDetector(core.NewEndDetector(newClient(cfg.LLM.DetectorModel, 0), logger)),
		core.WithClosureConfirmation(core.ClosureConfirmMessage),
		core.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	reply, err := doctor.GenerateResponse(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Doctor: %s\n", reply)

	patientTurns := 0
	for !doctor.Ended() && patientTurns < cfg.Session.MessageCap {
		line, err := readLine("You")
		if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}
		patientTurns++
		if err := doctor.Receive(ctx, line); err != nil {
			return err
		}
		if doctor.Ended() {
			break
		}
		if doctor.PendingClosure() {
			if err := doctor.Send(ctx, core.ClosureConfirmMessage); err != nil {
				return err
			}
			fmt.Fprintf(out, "Doctor: %s\n", core.ClosureConfirmMessage)
			continue
		}
		if reply, err = doctor.GenerateResponse(ctx); err != nil {
			return err
		}
		fmt.Fprintf(out, "Doctor: %s\n", reply)
	}
	if patientTurns >= cfg.Session.MessageCap {
		if err := doctor.Send(ctx, core.CapMessage); err != nil {
			return err
		}
		fmt.Fprintf(out, "Doctor: %s\n", core.CapMessage)
	}

	if !chatSummarize || patientTurns == 0 {
		return nil
	}
	transcript := doctor.History()
	summary, _, err := core.NewSummarizer(newClient(cfg.LLM.SummaryModel, 0), logger).Summarize(ctx, transcript)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%s", report.Markdown(pkg.Session{ID: doctor.SessionID()}, *summary, nil))
	return nil
}
