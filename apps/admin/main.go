package main

import (
	"log"
	"os"

	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
	"github.com/dtlearning/learninghub/services/apiclient"
	logsvc "github.com/dtlearning/learninghub/services/logger"
	"github.com/dtlearning/learninghub/storage/database"
)

var build = "develop"

func main() {
	defer os.Exit(0)

	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig(build)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		stdLogger.Fatal(err)
	}
	defer db.Close()
	if err = db.Ping(); err != nil {
		stdLogger.Fatal(err)
	}

	// set up services
	discovery := apiclient.NewDiscoveryClient(conf, logger)
	studio := apiclient.NewStudioClient(conf, logger)
	lms := apiclient.NewLMSClient(conf, logger)

	repo := database.NewClassroomRepository(db)
	provisioner := classroom.NewProvisioner(discovery, studio, lms, logger)
	synchronizer := classroom.NewSynchronizer(repo, lms, studio, lms, logger)
	clsSvc := classroom.NewService(repo, provisioner, synchronizer, nil, logger)

	// start CLI
	cli := commandLine{
		db:     db,
		clsSvc: clsSvc,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			stdLogger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
