package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/user"
	logsvc "github.com/trezcool/spis/services/logger"
	"github.com/trezcool/spis/storage/database"
	sqlxrepos "github.com/trezcool/spis/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf := core.NewConfig()

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	rollbarLogger := logsvc.NewRollbarLogger(stdLogger, conf)
	rollbarLogger.Enable(!conf.Debug)
	logger = rollbarLogger

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(db.Ping())

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db))

	// start CLI
	cli := commandLine{
		db:          db,
		usrSvc:      usrSvc,
		academicSvc: academic.NewService(sqlxrepos.NewAcademicRepository(db), usrSvc),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
