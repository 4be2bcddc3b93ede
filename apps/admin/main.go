package main

import (
	"database/sql"
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/intervention"
	"github.com/trezcool/mahudhurio/core/user"
	emailsvc "github.com/trezcool/mahudhurio/services/email"
	logsvc "github.com/trezcool/mahudhurio/services/logger"
	"github.com/trezcool/mahudhurio/storage/database"
	sqlxrepos "github.com/trezcool/mahudhurio/storage/database/sqlx"
)

var logger *log.Logger

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	ivnSvc  intervention.ServiceInterface
}

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(db.Ping())

	sdb := sqlx.NewDb(db, "postgres")
	usrRepo := sqlxrepos.NewUserRepository(sdb)
	attRepo := sqlxrepos.NewAttendanceRepository(sdb)
	ivnRepo := sqlxrepos.NewInterventionRepository(sdb)

	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(!conf.Debug)

	mailSvc := emailsvc.NewConsoleService(conf)
	core.ParseEmailTemplates(svcLogger, conf)

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: usrRepo,
		ivnSvc:  intervention.NewService(sdb, ivnRepo, attRepo, usrRepo, mailSvc, svcLogger, conf),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
