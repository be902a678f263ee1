package policy

import (
	"testing"

	"slackalert/internal/domain"
)

// TestDecideFullTable pins all 25 transition pairs of the closed status set.
func TestDecideFullTable(t *testing.T) {
	t.Parallel()

	const (
		passing  = domain.StatusPassing
		warning  = domain.StatusWarning
		errSt    = domain.StatusError
		critical = domain.StatusCritical
		acked    = domain.StatusAcked
	)

	want := map[domain.ServiceStatus]map[domain.ServiceStatus]Decision{
		// previous -> current -> decision
		passing: {
			passing:  SendWithMentions,
			warning:  SendSilent,
			errSt:    SendWithMentions,
			critical: SendWithMentions,
			acked:    Suppress,
		},
		warning: {
			passing:  SendSilent,
			warning:  SendSilent,
			errSt:    SendWithMentions,
			critical: SendWithMentions,
			acked:    SendSilent,
		},
		errSt: {
			passing:  SendWithMentions,
			warning:  SendSilent,
			errSt:    SendSilent,
			critical: SendWithMentions,
			acked:    SendSilent,
		},
		critical: {
			passing:  SendWithMentions,
			warning:  SendSilent,
			errSt:    SendWithMentions,
			critical: SendWithMentions,
			acked:    SendSilent,
		},
		acked: {
			passing:  Suppress,
			warning:  SendSilent,
			errSt:    SendWithMentions,
			critical: SendWithMentions,
			acked:    Suppress,
		},
	}

	statuses := []domain.ServiceStatus{passing, warning, errSt, critical, acked}
	pairs := 0
	for _, previous := range statuses {
		for _, current := range statuses {
			pairs++
			got := Decide(previous, current)
			if got != want[previous][current] {
				t.Errorf("decide(%s -> %s) = %s, want %s", previous, current, got, want[previous][current])
			}
		}
	}
	if pairs != 25 {
		t.Fatalf("table must cover 25 pairs, covered %d", pairs)
	}
}

func TestDecisionString(t *testing.T) {
	t.Parallel()

	if Suppress.String() != "suppress" || SendSilent.String() != "send_silent" || SendWithMentions.String() != "send_with_mentions" {
		t.Fatal("decision names changed")
	}
	if Decision(42).String() != "unknown" {
		t.Fatal("out-of-range decision must render unknown")
	}
}
