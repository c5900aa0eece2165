package dig_container

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/spis/apps/api/echo"
	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/dashboard"
	"github.com/trezcool/spis/core/messaging"
	"github.com/trezcool/spis/core/user"
	emailsvc "github.com/trezcool/spis/services/email"
	logsvc "github.com/trezcool/spis/services/logger"
	"github.com/trezcool/spis/storage/database"
	inmemdb "github.com/trezcool/spis/storage/database/inmem"
	sqlxrepos "github.com/trezcool/spis/storage/database/sqlx"
)

// InmemEngine keeps everything in memory; handy for demos and local frontend work.
const InmemEngine = "inmem"

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Repositories are provided together so the engine is picked in one place.
type Repositories struct {
	dig.Out
	User      user.Repository
	Academic  academic.Repository
	Messaging messaging.Repository
}

type ServerParams struct {
	dig.In
	Conf         *core.Config
	Logger       core.Logger
	UserSvc      *user.Service
	AcademicSvc  *academic.Service
	MessagingSvc *messaging.Service
	DashboardSvc *dashboard.Service
	Validate     *validator.Validate
	Translator   ut.Translator
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

// newDB returns nil when the in-memory engine is configured.
func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	if conf.Database.Engine == InmemEngine {
		return nil
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newRepositories(conf *core.Config, db *sqlx.DB) Repositories {
	if conf.Database.Engine == InmemEngine {
		mem := inmemdb.Open()
		return Repositories{
			User:      inmemdb.NewUserRepository(mem),
			Academic:  inmemdb.NewAcademicRepository(mem),
			Messaging: inmemdb.NewMessagingRepository(mem),
		}
	}
	return Repositories{
		User:      sqlxrepos.NewUserRepository(db),
		Academic:  sqlxrepos.NewAcademicRepository(db),
		Messaging: sqlxrepos.NewMessagingRepository(db),
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:         p.Conf,
		Logger:       p.Logger,
		UserSvc:      p.UserSvc,
		AcademicSvc:  p.AcademicSvc,
		MessagingSvc: p.MessagingSvc,
		DashboardSvc: p.DashboardSvc,
		Validate:     p.Validate,
		Translator:   p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newRepositories))
	must(c.Provide(newEmailService))
	must(c.Provide(validator.New))
	must(c.Provide(newTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(academic.NewService))
	must(c.Provide(messaging.NewService))
	must(c.Provide(dashboard.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
