package bot

// User-facing copy outside the registration dialog.
const (
	msgGreetingFmt = "Hi %s! 👋\nI help you register for our trips and get you into the trip group once your payment is confirmed."
	msgMenuHint    = "What would you like to do?"

	msgNoTrips           = "No trips are open for registration right now. Check back soon!"
	msgPickTrip          = "These trips are open for registration:"
	msgNoRegistrations   = "You have no registrations yet."
	msgYourRegistrations = "Your registrations:"

	msgJoinNotReady = "Your registration is not confirmed yet. You will get the group invite here once an organizer confirms your payment."
	msgJoinFailed   = "Could not prepare your group invite. The organizers have been notified."

	msgLinkTripGroupOnly = "Run this command inside the trip's group chat."
	msgLinkTripUsage     = "Usage: /link_trip <trip_id>"
	msgLinkTripDoneFmt   = "Linked this group to <b>%s</b>. Confirmed travelers will be invited here."
	msgLinkTripFailedFmt = "Could not link the trip: %s"

	msgUnknownCommand = "I did not understand that. Use the menu below."

	btnGetInviteFmt = "Get group invite: %s"

	registrationStatusFmt = "• <b>%s</b>: %s, payment %s"
)
