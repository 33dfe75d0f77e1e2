package verification

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/otpgate/otpgate/internal/pkg/clock"
	"github.com/otpgate/otpgate/internal/pkg/config"
	"github.com/otpgate/otpgate/internal/pkg/goroutine"
	"github.com/otpgate/otpgate/internal/pkg/hash"
	"github.com/otpgate/otpgate/internal/pkg/instrument"
	"github.com/otpgate/otpgate/internal/pkg/mail"
	"github.com/otpgate/otpgate/internal/pkg/messaging"
	"github.com/otpgate/otpgate/internal/pkg/otp"
	"github.com/otpgate/otpgate/internal/pkg/router"
	"github.com/otpgate/otpgate/internal/pkg/uid"
	"github.com/otpgate/otpgate/internal/pkg/validator"
	"github.com/otpgate/otpgate/internal/verification/inbound"
	"github.com/otpgate/otpgate/internal/verification/outbound/accountdb"
	"github.com/otpgate/otpgate/internal/verification/outbound/challengedb"
	"github.com/otpgate/otpgate/internal/verification/outbound/email"
	"github.com/otpgate/otpgate/internal/verification/outbound/mq"
	"github.com/otpgate/otpgate/internal/verification/usecase"
	"github.com/redis/go-redis/v9"
)

type Dependency struct {
	DBConn        *pgxpool.Pool              `validate:"required"`
	CacheConn     *redis.Client              `validate:"required"`
	Goroutine     *goroutine.Manager         `validate:"required"`
	Router        *router.Router             `validate:"required"`
	Messaging     messaging.Messaging        `validate:"required"`
	Mail          mail.Mail                  `validate:"required"`
	Config        config.Config              `validate:"required"`
	Instrument    instrument.Instrumentation `validate:"required"`
	UID           uid.NumberID               `validate:"required"`
	HMAC          hash.Hash                  `validate:"required"`
	CodeGenerator otp.Generator              `validate:"required"`
	Clock         clock.Clocker              `validate:"required"`
	Validator     validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	accountRepo := accountdb.NewDB(dep.DBConn, dep.Instrument)
	challengeRepo := challengedb.NewRedis(dep.CacheConn, dep.Instrument)
	notifier := email.New(dep.Mail, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoAccount:   accountRepo,
		RepoChallenge: challengeRepo,
		RepoMessaging: repoMsg,
		Notifier:      notifier,
		Validator:     dep.Validator,
		Config:        dep.Config,
		HMAC:          dep.HMAC,
		CodeGenerator: dep.CodeGenerator,
		UID:           dep.UID,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
