package service

import "cottage/internal/models"

// RequireMember allows any signed-in user.
func RequireMember(actor models.Actor) error {
	if !actor.Authenticated() {
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin allows admins only. Anonymous callers get ErrForbidden as well,
// so admin operations never report an authentication problem instead.
func RequireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// CanViewAllBookings reports whether the caller sees bookings in every status.
func CanViewAllBookings(actor models.Actor) bool {
	return actor.Authenticated()
}
