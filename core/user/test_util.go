package user

import (
	"context"

	"github.com/trezcool/mahudhurio/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a user service that runs side effects (emails) synchronously.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) ServiceInterface {
	initTokenGen(conf)
	return &serviceMock{
		service: service{db: db, repo: repo, mailSvc: mailSvc, conf: conf},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
