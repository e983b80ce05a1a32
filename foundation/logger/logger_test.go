package logger_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/VeriBlock/alt-integration-go/foundation/logger"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func TestEventHandler(t *testing.T) {
	t.Log("Given the need to forward engine events to the log and the sinks.")
	{
		testID := 0
		t.Logf("\tTest %d:\tWhen an event is raised.", testID)
		{
			path := filepath.Join(t.TempDir(), "node.log")

			log, err := logger.New("TEST", path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to construct the logger: %v", failed, testID, err)
			}

			var got []string
			ev := logger.EventHandler(log, func(s string) { got = append(got, s) })

			ev("state: SetState: tip[%d]", 7)
			ev("100% applied")
			log.Sync()

			if len(got) != 2 || got[0] != "state: SetState: tip[7]" || got[1] != "100% applied" {
				t.Fatalf("\t%s\tTest %d:\tShould hand the formatted events to the sink: %q", failed, testID, got)
			}
			t.Logf("\t%s\tTest %d:\tShould hand the formatted events to the sink.", success, testID)

			data, err := os.ReadFile(path)
			if err != nil {
				t.Fatalf("\t%s\tTest %d:\tShould be able to read the log: %v", failed, testID, err)
			}

			if !strings.Contains(string(data), `"service":"TEST"`) || !strings.Contains(string(data), "tip[7]") {
				t.Fatalf("\t%s\tTest %d:\tShould write the events to the log:\n%s", failed, testID, data)
			}
			t.Logf("\t%s\tTest %d:\tShould write the events to the log.", success, testID)
		}
	}
}
