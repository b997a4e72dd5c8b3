package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only the admin reach next. With no admin
// configured every caller is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID == 0 || c.Sender() == nil || c.Sender().ID != opts.AdminID {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// DenyOptions configures DenyMiddleware.
type DenyOptions struct {
	// Denied reports whether the user must not reach downstream handlers.
	Denied func(userID int64) bool
	// AdminID is never denied.
	AdminID  int64
	OnReject tele.HandlerFunc
}

// DenyMiddleware stops updates from users for which Denied returns true.
func DenyMiddleware(opts DenyOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if opts.Denied == nil || user == nil || (opts.AdminID != 0 && user.ID == opts.AdminID) {
				return next(c)
			}
			if !opts.Denied(user.ID) {
				return next(c)
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
