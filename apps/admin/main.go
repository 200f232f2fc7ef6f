package main

import (
	"log"
	"os"

	"github.com/trezcool/recqa/core"
	"github.com/trezcool/recqa/core/grade"
	logsvc "github.com/trezcool/recqa/services/logger"
	"github.com/trezcool/recqa/storage/database"
	boiledrepos "github.com/trezcool/recqa/storage/database/sqlboiler"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}

	// start CLI
	cli := commandLine{
		db:       db,
		usrRepo:  boiledrepos.NewUserRepository(db),
		gradeSvc: grade.NewService(boiledrepos.NewGradeRepository(db), nil),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}
