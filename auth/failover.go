package auth

import (
	"context"

	"github.com/agentuity/go-catalog/resilience"
)

// Failover is a Provider that routes every call through a dispatcher.
type Failover struct {
	dispatcher *resilience.Dispatcher[Provider]
}

var _ Provider = (*Failover)(nil)

func NewFailover(d *resilience.Dispatcher[Provider]) *Failover {
	return &Failover{dispatcher: d}
}

func (f *Failover) SignIn(ctx context.Context, email, password string) (Session, error) {
	return resilience.Call(ctx, f.dispatcher, "sign_in", func(ctx context.Context, p Provider) (Session, error) {
		return p.SignIn(ctx, email, password)
	})
}

func (f *Failover) SignOut(ctx context.Context, token string) error {
	return f.dispatcher.Do(ctx, "sign_out", func(ctx context.Context, p Provider) error {
		return p.SignOut(ctx, token)
	})
}

func (f *Failover) CurrentUser(ctx context.Context, token string) (User, error) {
	return resilience.Call(ctx, f.dispatcher, "current_user", func(ctx context.Context, p Provider) (User, error) {
		return p.CurrentUser(ctx, token)
	})
}

func (f *Failover) UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (User, error) {
	return resilience.Call(ctx, f.dispatcher, "update_profile", func(ctx context.Context, p Provider) (User, error) {
		return p.UpdateProfile(ctx, token, update)
	})
}
