/*
Copyright (c) YugabyteDB, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dbmask/dbmask/src/config"
	"github.com/dbmask/dbmask/src/utils"
)

type MyFormatter struct{}

var levelList = []string{
	"PANIC",
	"FATAL",
	"ERROR",
	"WARN",
	"INFO",
	"DEBUG",
	"TRACE",
}

func (mf *MyFormatter) Format(entry *log.Entry) ([]byte, error) {
	level := levelList[int(entry.Level)]
	fileName, line := "", 0
	if entry.Caller != nil {
		fileName, line = filepath.Base(entry.Caller.File), entry.Caller.Line
	}
	// 2024-03-23 12:16:42 INFO tableAnonymizer.go:27 Processing table users with 3 records...
	msg := fmt.Sprintf("%s %s %s:%d %s\n",
		entry.Time.Format("2006-01-02 15:04:05"), level,
		fileName, line, entry.Message)
	return []byte(msg), nil
}

func InitLogging(logDir string, disableLogging bool, cmdName string) {
	if disableLogging {
		log.SetOutput(io.Discard)
		return
	}
	logFileName := filepath.Join(logDir, "logs", fmt.Sprintf("dbmask-%s.log", cmdName))

	// lumberjack creates the logs folder and the file when missing.
	logRotator := &lumberjack.Logger{
		Filename:   logFileName,
		MaxSize:    200, // MB
		MaxBackups: 10,
	}
	log.SetOutput(logRotator)

	log.SetLevel(config.GetLogrusLevel())
	log.SetReportCaller(true)
	log.SetFormatter(&MyFormatter{})
	log.Info("Logging initialised.")
	log.Infof("Args: %v", redactPasswordFromArgs(os.Args))
	log.Infof("\n%s", getVersionInfo())
}

// redactPasswordFromArgs returns a copy of args with the value of --password
// masked and the password of a --uri replaced.
func redactPasswordFromArgs(args []string) []string {
	redacted := make([]string, len(args))
	copy(redacted, args)
	for i := 0; i < len(redacted); i++ {
		switch redacted[i] {
		case "--password", "-p":
			if i+1 < len(redacted) {
				redacted[i+1] = "XXX"
			}
		case "--uri":
			if i+1 < len(redacted) {
				redacted[i+1] = utils.GetRedactedURLs([]string{redacted[i+1]})[0]
			}
		default:
			if strings.HasPrefix(redacted[i], "--password=") {
				redacted[i] = "--password=XXX"
			} else if strings.HasPrefix(redacted[i], "--uri=") {
				redacted[i] = "--uri=" + utils.GetRedactedURLs([]string{strings.TrimPrefix(redacted[i], "--uri=")})[0]
			}
		}
	}
	return redacted
}
