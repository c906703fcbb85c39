package canlog

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// NowString returns the current time formatted for log file names.
func NowString() string {
	return time.Now().Format("20060102_1504")
}

// MakeDir creates a date-named directory for the current day's log files
// and returns its path.
func MakeDir() (string, error) {
	now := time.Now()
	dirName := fmt.Sprintf("%d_%02d_%02d", now.Year(), now.Month(), now.Day())
	fullPath := filepath.Join(".", dirName)

	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		if err := os.MkdirAll(fullPath, 0755); err != nil {
			return "", fmt.Errorf("canlog: create log directory: %w", err)
		}
	}
	return fullPath, nil
}

// RecorderAsNameInit points the process-wide log output at a file named
// after the given prefix inside today's log directory.
func RecorderAsNameInit(name string) error {
	log.SetPrefix("")
	log.SetFlags(log.Lmicroseconds)

	dir, err := MakeDir()
	if err != nil {
		return err
	}

	logPath := filepath.Join(dir, fmt.Sprintf("%s.log", name))
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0666)
	if err != nil {
		return fmt.Errorf("canlog: open log file: %w", err)
	}

	log.SetOutput(f)
	return nil
}

// InitAndRotate initializes the log recorder and rotates the log file to
// a new timestamped name every 5 minutes.
func InitAndRotate(logName string) {
	if err := RecorderAsNameInit(logName + NowString()); err != nil {
		log.Printf("canlog: initial recorder setup failed: %v", err)
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()

		for range ticker.C {
			if err := RecorderAsNameInit(logName + NowString()); err != nil {
				log.Printf("canlog: log rotation failed: %v", err)
			}
		}
	}()
}

// Init points the log output at a single timestamped file without
// rotation.
func Init(logName string) {
	if err := RecorderAsNameInit(logName + NowString()); err != nil {
		log.Printf("canlog: recorder setup failed: %v", err)
	}
}
