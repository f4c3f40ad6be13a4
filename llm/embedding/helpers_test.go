package embedding

import (
	"time"

	"github.com/BaSui01/wikichat/llm"
	"github.com/BaSui01/wikichat/llm/retry"
)

func fastRetryer() retry.Retryer {
	return retry.NewBackoffRetryer(&retry.RetryPolicy{
		MaxRetries:   2,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		Multiplier:   2,
		ShouldRetry:  llm.IsRetryable,
	}, nil)
}
