package workflow

import (
	"sync"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/cari_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatDocumentNumber(t *testing.T) {
	tests := []struct {
		prefix string
		period string
		value  int64
		want   string
	}{
		{"INV", "20261018", 1, "INV-20261018-0001"},
		{"DN", "20261018", 42, "DN-20261018-0042"},
		{"PAY", "20261231", 9999, "PAY-20261231-9999"},
		{"INV", "20261018", 12345, "INV-20261018-12345"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDocumentNumber(tt.prefix, tt.period, tt.value))
	}
}

func TestSequenceGeneratorCountsPerKindAndDay(t *testing.T) {
	f := newFixture(t)
	seq := f.ledger.Sequences

	for i, want := range []string{"INV-" + today + "-0001", "INV-" + today + "-0002", "INV-" + today + "-0003"} {
		got, err := seq.Next(f.ctx, models.SequenceKindInvoice)
		require.NoError(t, err, "call %d", i)
		assert.Equal(t, want, got)
	}

	got, err := seq.Next(f.ctx, models.SequenceKindPayment)
	require.NoError(t, err)
	assert.Equal(t, "PAY-"+today+"-0001", got)

	// a new day restarts the counter
	seq.now = func() time.Time { return fixedNow.AddDate(0, 0, 1) }
	got, err = seq.Next(f.ctx, models.SequenceKindInvoice)
	require.NoError(t, err)
	assert.Equal(t, "INV-20261019-0001", got)
}

func TestSequenceGeneratorRejectsUnknownKind(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Sequences.Next(f.ctx, models.SequenceKind("credit_note"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSequenceGeneratorConcurrentCallsNeverRepeat(t *testing.T) {
	f := newFixture(t)
	const callers = 20

	var wg sync.WaitGroup
	numbers := make(chan string, callers)
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := f.ledger.Sequences.Next(f.ctx, models.SequenceKindDeliveryNote)
			if err != nil {
				errs <- err
				return
			}
			numbers <- n
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	seen := map[string]bool{}
	for n := range numbers {
		assert.False(t, seen[n], "duplicate number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, callers)
	assert.True(t, seen["DN-"+today+"-0020"])
}
