// Package pam authenticates users through Linux-PAM and keeps the PAM
// session open for the lifetime of the identity it returns.
package pam

import (
	"errors"
	"fmt"
	"strings"

	"github.com/msteinert/pam/v2"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/secret"
)

// Authenticator runs the auth, account and session stacks of one PAM service.
type Authenticator struct {
	Service string
}

func New(service string) *Authenticator {
	return &Authenticator{Service: service}
}

func (a *Authenticator) Authenticate(username string, password *secret.String) (*auth.Identity, error) {
	log := logger.Log.With("component", "pam", "service", a.Service, "user", username)

	tx, err := pam.StartFunc(a.Service, username, conversation(username, password, log))
	if err != nil {
		return nil, &auth.Failure{Reason: auth.ReasonService, Err: err}
	}

	fail := func(reason auth.Reason, err error) (*auth.Identity, error) {
		if endErr := tx.End(); endErr != nil {
			log.Warn("Failed to end PAM transaction", "err", endErr)
		}
		return nil, &auth.Failure{Reason: reason, Err: err}
	}

	if err := tx.Authenticate(0); err != nil {
		return fail(auth.ReasonBadCredentials, err)
	}
	if err := tx.AcctMgmt(0); err != nil {
		return fail(auth.ReasonAccount, err)
	}
	if err := tx.SetCred(pam.EstablishCred); err != nil {
		return fail(auth.ReasonCredentials, err)
	}
	if err := tx.OpenSession(0); err != nil {
		tx.SetCred(pam.DeleteCred)
		return fail(auth.ReasonSession, err)
	}

	id, err := auth.LookupUser(username)
	if err != nil {
		tx.CloseSession(0)
		tx.SetCred(pam.DeleteCred)
		return fail(auth.ReasonUserUnknown, err)
	}

	if env, err := tx.GetEnvList(); err == nil {
		id.Env = env
	}
	id.Attach(password, &session{tx: tx, log: log})
	log.Info("PAM session opened", "uid", id.UID)
	return id, nil
}

func conversation(username string, password *secret.String, log logger.Logger) func(pam.Style, string) (string, error) {
	return func(style pam.Style, msg string) (string, error) {
		switch style {
		case pam.PromptEchoOff:
			return password.Reveal(), nil
		case pam.PromptEchoOn:
			return username, nil
		case pam.ErrorMsg:
			log.Warn("PAM error message", "msg", strings.TrimSpace(msg))
			return "", nil
		case pam.TextInfo:
			log.Info("PAM info message", "msg", strings.TrimSpace(msg))
			return "", nil
		}
		return "", fmt.Errorf("unsupported PAM message style %d", style)
	}
}

// session revokes the PAM session when the identity is invalidated.
type session struct {
	tx  *pam.Transaction
	log logger.Logger
}

func (s *session) Close() error {
	var errs []error
	if err := s.tx.CloseSession(0); err != nil {
		errs = append(errs, fmt.Errorf("close session: %w", err))
	}
	if err := s.tx.SetCred(pam.DeleteCred); err != nil {
		errs = append(errs, fmt.Errorf("delete credentials: %w", err))
	}
	if err := s.tx.End(); err != nil {
		errs = append(errs, fmt.Errorf("end transaction: %w", err))
	}
	s.log.Info("PAM session closed")
	return errors.Join(errs...)
}

// Personal.AI order the ending
