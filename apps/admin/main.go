package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
	"github.com/LucadeVeintemilla/emotionTracking/services/backend"
	"github.com/LucadeVeintemilla/emotionTracking/services/camera"
	"github.com/LucadeVeintemilla/emotionTracking/services/imaging"
	logsvc "github.com/LucadeVeintemilla/emotionTracking/services/logger"
	"github.com/LucadeVeintemilla/emotionTracking/storage/database"
)

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	client := backend.NewClient(conf.Backend, logger)
	studentSvc := student.NewService(client, logger)

	// start CLI
	cli := commandLine{
		conf: conf,
		out:  os.Stdout,
		openDB: func() (*sqlx.DB, error) {
			db, err := database.Open(conf.Database)
			if err != nil {
				return nil, err
			}
			if err = database.Ping(db.DB); err != nil {
				_ = db.Close()
				return nil, err
			}
			return db, nil
		},
		newSource: func() (live.FrameSource, error) {
			return camera.NewSource(conf.Capture)
		},
		prep:       imaging.NewPreprocessor(conf.Capture),
		backend:    client,
		studentSvc: studentSvc,
		emotionSvc: emotion.NewService(client, studentSvc, nil, logger),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
