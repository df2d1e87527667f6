package usage

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUsageConcurrent(t *testing.T) {
	u := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u.AddLLMCall(10)
			u.AddEmbedCall(3)
			u.AddCacheHit()
		}()
	}
	wg.Wait()
	u.AddLLMFailure()

	s := u.Snapshot()
	assert.Equal(t, int64(50), s.LLMCalls)
	assert.Equal(t, int64(500), s.LLMTokens)
	assert.Equal(t, int64(1), s.LLMFailures)
	assert.Equal(t, int64(50), s.CacheHits)
	assert.Equal(t, int64(50), s.EmbedCalls)
	assert.Equal(t, int64(150), s.EmbeddedTexts)
}

func TestNilUsage(t *testing.T) {
	var u *Usage
	u.AddLLMCall(1)
	u.AddEmbedCall(1)
	assert.Equal(t, Summary{}, u.Snapshot())
}
