package main

import (
	"context"
	"database/sql"
	"expvar"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/dtlearning/learninghub/apps/api/echo"
	"github.com/dtlearning/learninghub/core"
	"github.com/dtlearning/learninghub/core/classroom"
	"github.com/dtlearning/learninghub/services/apiclient"
	emailsvc "github.com/dtlearning/learninghub/services/email"
	logsvc "github.com/dtlearning/learninghub/services/logger"
	"github.com/dtlearning/learninghub/storage/database"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	conf := core.NewConfig(build)

	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)

	logger.Info(fmt.Sprintf("Application initializing : version %q", build))
	defer logger.Info("Application stopped")

	// =========================================================================
	// Set up dependencies

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	classroom.InitValidators(validate, translator)

	db := setUpDatabase(conf, logger)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing database: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	discovery := apiclient.NewDiscoveryClient(conf, logger)
	studio := apiclient.NewStudioClient(conf, logger)
	lms := apiclient.NewLMSClient(conf, logger)

	repo := database.NewClassroomRepository(db)
	provisioner := classroom.NewProvisioner(discovery, studio, lms, logger)
	synchronizer := classroom.NewSynchronizer(repo, lms, studio, lms, logger)
	clsSvc := classroom.NewService(repo, provisioner, synchronizer, mailSvc, logger)

	server := echoapi.NewServer(&echoapi.Options{
		Address:      conf.Server.Address(),
		Conf:         conf,
		Logger:       logger,
		ClassroomSvc: clsSvc,
		Catalog:      discovery,
		Validate:     validate,
		Translator:   translator,
	})

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	go server.Start()

	// =========================================================================
	// Shutdown

	select {
	case err := <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shut down and shed load
		if err := server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDatabase(conf *core.Config, logger core.Logger) *sql.DB {
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
	}

	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	if err = database.Migrate(db); err != nil {
		logger.Fatal(fmt.Sprintf("migrating database: %v", err), err)
	}
	return db
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}
