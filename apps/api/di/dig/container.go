package dig_container

import (
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/LucadeVeintemilla/emotionTracking/apps/api/echo"
	"github.com/LucadeVeintemilla/emotionTracking/core"
	"github.com/LucadeVeintemilla/emotionTracking/core/emotion"
	"github.com/LucadeVeintemilla/emotionTracking/core/live"
	"github.com/LucadeVeintemilla/emotionTracking/core/student"
	"github.com/LucadeVeintemilla/emotionTracking/services/backend"
	"github.com/LucadeVeintemilla/emotionTracking/services/camera"
	emailsvc "github.com/LucadeVeintemilla/emotionTracking/services/email"
	"github.com/LucadeVeintemilla/emotionTracking/services/imaging"
	logsvc "github.com/LucadeVeintemilla/emotionTracking/services/logger"
	wshub "github.com/LucadeVeintemilla/emotionTracking/services/websocket"
	"github.com/LucadeVeintemilla/emotionTracking/storage/database"
	sqlxrepos "github.com/LucadeVeintemilla/emotionTracking/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In
	Conf       *core.Config
	Logger     core.Logger
	Registry   *live.Registry
	Cycles     live.CycleRecorder
	StudentSvc *student.Service
	EmotionSvc *emotion.Service
	MailSvc    core.EmailService
	Hub        *wshub.Hub
	Validate   *validator.Validate
	Translator ut.Translator
}

func newValidate(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	return validate
}

func newConfig(validate *validator.Validate) (*core.Config, error) {
	conf := core.NewConfig()
	if err := validate.Struct(conf); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return conf, nil
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
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

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		db, err := database.Open(conf.Database)
		if err != nil {
			return nil, err
		}
		if err = database.Ping(db.DB); err != nil {
			return nil, err
		}
		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal("setting up database: "+err.Error(), err)
	}
	return db
}

func newCycleRepository(db *sqlx.DB) live.CycleRecorder {
	return sqlxrepos.NewCycleRepository(db)
}

func newBackendClient(conf *core.Config, logger core.Logger) *backend.Client {
	return backend.NewClient(conf.Backend, logger)
}

func newStudentService(client *backend.Client, logger core.Logger) *student.Service {
	return student.NewService(client, logger)
}

func newEmotionService(client *backend.Client, studentSvc *student.Service, logger core.Logger) *emotion.Service {
	return emotion.NewService(client, studentSvc, nil, logger)
}

func newRegistry(
	conf *core.Config,
	logger core.Logger,
	client *backend.Client,
	cycles live.CycleRecorder,
	hub *wshub.Hub,
) (*live.Registry, error) {
	source, err := camera.NewSource(conf.Capture)
	if err != nil {
		return nil, errors.Wrap(err, "setting up camera")
	}
	return live.NewRegistry(live.Deps{
		Source:       source,
		Preprocessor: imaging.NewPreprocessor(conf.Capture),
		Transport:    client,
		Recorder:     cycles,
		Logger:       logger,
		Listeners:    []live.Listener{hub},
		Interval:     conf.Capture.Interval,
	}), nil
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       p.Conf,
		Logger:     p.Logger,
		Registry:   p.Registry,
		Cycles:     p.Cycles,
		StudentSvc: p.StudentSvc,
		EmotionSvc: p.EmotionSvc,
		MailSvc:    p.MailSvc,
		Hub:        p.Hub,
		Validate:   p.Validate,
		Translator: p.Translator,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewTranslator))
	must(c.Provide(newValidate))
	must(c.Provide(newConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newCycleRepository))
	must(c.Provide(emailsvc.NewService))
	must(c.Provide(newBackendClient))
	must(c.Provide(newStudentService))
	must(c.Provide(newEmotionService))
	must(c.Provide(wshub.NewHub))
	must(c.Provide(newRegistry))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
