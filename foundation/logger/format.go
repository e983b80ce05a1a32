package logger

import "fmt"

func sprintf(v string, args ...any) string {
	if len(args) == 0 {
		return v
	}
	return fmt.Sprintf(v, args...)
}
