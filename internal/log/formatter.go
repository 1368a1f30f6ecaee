package log

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// formatter renders entries through a pattern with %time, %level, %field
// and %msg placeholders.
type formatter struct {
	pattern string
	time    string
}

func (f *formatter) Format(entry *logrus.Entry) ([]byte, error) {
	output := f.pattern
	output = strings.Replace(output, "%time", entry.Time.Format(f.time), 1)
	output = strings.Replace(output, "%level", entry.Level.String(), 1)
	output = strings.Replace(output, "%field", buildFields(entry), 1)
	output = strings.Replace(output, "%msg", entry.Message, 1)
	return []byte(output), nil
}

func buildFields(entry *logrus.Entry) string {
	if len(entry.Data) == 0 {
		return ""
	}
	parts := make([]string, 0, len(entry.Data))
	for k, v := range entry.Data {
		parts = append(parts, fmt.Sprintf("%s=%+v", k, v))
	}
	return strings.Join(parts, " ")
}
