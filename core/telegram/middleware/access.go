package middleware

import tele "gopkg.in/telebot.v4"

// AdminOnly passes updates from adminID through to the handler and sends everyone
// else to reject. An adminID of zero rejects every caller.
func AdminOnly(adminID int64, reject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); adminID != 0 && u != nil && u.ID == adminID {
				return next(c)
			}
			if reject == nil {
				return nil
			}
			return reject(c)
		}
	}
}
