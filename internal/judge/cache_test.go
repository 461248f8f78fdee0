package judge

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	a := ContentHash([]string{"Doctor: hi", "Patient: hello"}, "prompt")
	assert.Equal(t, a, ContentHash([]string{"Doctor: hi ", "Patient: hello"}, " prompt\n"))
	assert.NotEqual(t, a, ContentHash([]string{"Doctor: hi", "Patient: hello"}, "other"))
	assert.NotEqual(t, a, ContentHash([]string{"Doctor: hi"}, "Patient: hello\nprompt"))
	assert.Len(t, a, 64)
}

func TestCacheOrderAndConcurrency(t *testing.T) {
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Put("s", string(rune('a'+i)), &Evaluation{})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 20, c.Len())

	c2 := NewCache()
	c2.Put("s", "1", &Evaluation{Observations: "first"})
	c2.Put("s", "2", &Evaluation{Observations: "second"})
	c2.Put("s", "1", &Evaluation{Observations: "first again"})
	assert.Equal(t, []string{"first again", "second"}, c2.Observations())

	_, ok := c2.Get("other", "1")
	assert.False(t, ok)
}
