package events_test

import (
	"testing"

	"github.com/VeriBlock/alt-integration-go/foundation/events"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestEvents(t *testing.T) {
	t.Log("Given the need to fan engine events out to subscribers.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen subscribers filter by prefix.", testID)
		{
			evts := events.New()

			all := evts.Acquire("all")
			mp := evts.Acquire("mempool", "state: SubmitPayload")

			evts.Send("state: SetState: tip[0x01]")
			evts.Send("state: SubmitPayload: atv[0x02]")

			if len(all) != 2 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver every event without a filter: %d", failed, testID, len(all))
			}
			t.Logf("\t%s\tTest %d:\tShould deliver every event without a filter.", success, testID)

			if len(mp) != 1 {
				t.Fatalf("\t%s\tTest %d:\tShould deliver only the matching events: %d", failed, testID, len(mp))
			}
			if e := <-mp; e.Message != "state: SubmitPayload: atv[0x02]" || e.Time.IsZero() {
				t.Fatalf("\t%s\tTest %d:\tShould deliver the stamped message: %+v", failed, testID, e)
			}
			t.Logf("\t%s\tTest %d:\tShould deliver only the matching events.", success, testID)

			evts.Shutdown()
			if _, err := evts.Release("all"); err == nil {
				t.Fatalf("\t%s\tTest %d:\tShould remove every subscriber on shutdown.", failed, testID)
			}
			t.Logf("\t%s\tTest %d:\tShould remove every subscriber on shutdown.", success, testID)
		}

		testID++
		t.Logf("\tTest %d:\tWhen a subscriber falls behind.", testID)
		{
			evts := events.New()
			evts.Acquire("slow")

			for i := 0; i < 105; i++ {
				evts.Send("state: load")
			}

			dropped, err := evts.Release("slow")
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould release the subscriber: %v", failed, testID, err)
			}
			if dropped != 5 {
				t.Fatalf("\t%s\tTest %d:\tShould count the dropped events: got %d", failed, testID, dropped)
			}
			t.Logf("\t%s\tTest %d:\tShould drop and count the events past the buffer.", success, testID)
		}
	}
}
