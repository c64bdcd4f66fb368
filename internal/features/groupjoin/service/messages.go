package service

import "strings"

// Text recorded on registrations and sent to travelers. The failure notes
// land in the registration's group_join_error field, where operators read
// them; the traveler only ever sees Msg* values through the bot.
const (
	MsgTravelerMissingTelegramID = "Traveler missing Telegram ID."
	MsgInvalidTelegramID         = "Invalid Telegram ID stored."
	MsgNoGroupConfigured         = "Trip has no Telegram group configured. Ask an admin to run /link_trip."
	MsgInvalidGroupChatID        = "Trip group chat ID is invalid. Re-run /link_trip."
	MsgBotCannotMessageTraveler  = "Bot cannot message the traveler."
	MsgCouldNotCreateInvite      = "Could not create a group invite link."

	joinButtonText      = "Join trip group"
	paymentConfirmedFmt = "🎉 Your payment for <b>%s</b> is confirmed!\nTap the button below to request access to the trip group."
	welcomeToGroupFmt   = "Welcome to %s! You are now in the trip group."

	// awaitingJoinNoteFmt is the non-final progress note stored in
	// group_join_error after an invite is delivered. It doubles as the
	// durable cross-restart signal that an invite is in flight, matched
	// by substring (the backend schema has no separate join-phase field).
	awaitingJoinNoteFmt = "Awaiting traveler to join via invite link sent at %s."
	awaitingJoinMarker  = "awaiting traveler to join"
)

// hasAwaitingMarker reports whether a group_join_error value is the
// invite-in-flight progress note rather than a real failure.
func hasAwaitingMarker(joinError string) bool {
	return strings.Contains(strings.ToLower(joinError), awaitingJoinMarker)
}
