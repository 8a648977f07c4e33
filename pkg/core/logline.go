package core

import (
	"fmt"
	"time"
)

// TimeLayout is the timestamp format used inside the brackets of every line.
const TimeLayout = "2006-01-02 15:04:05"

// Category classifies a log line by the part of the run that produced it.
type Category string

const (
	CategoryStartup Category = "startup"
	CategoryDevice  Category = "device"
	CategoryShare   Category = "share"
	CategoryStatus  Category = "status"
	CategorySummary Category = "summary"
)

// LogLine represents a single line of miner output.
type LogLine struct {
	Time     time.Time `json:"time"`
	Category Category  `json:"category"`
	Text     string    `json:"text"` // message without the bracketed timestamp
}

// String renders the line as it appears in the log file, without the newline.
func (l LogLine) String() string {
	return fmt.Sprintf("[%s] %s", l.Time.Format(TimeLayout), l.Text)
}
