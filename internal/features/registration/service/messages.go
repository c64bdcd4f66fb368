package service

// Dialog prompts. Steps that accept "-" or "skip" say so in the prompt.
const (
	msgAlreadyRegistered = "You already have a registration for this trip. An organizer will review it shortly."
	msgTripUnavailable   = "This trip is no longer available."

	promptFirstName        = "Let's get you registered! What is your first name?"
	promptFirstNameSuggest = "Let's get you registered! What is your first name?\nSend \"-\" to use <b>%s</b>."
	promptFirstNameRetry   = "Please send your first name as text."
	promptLastName         = "What is your last name? Send \"-\" or \"skip\" to leave it out."
	promptPhone            = "Please share your phone number. Use the button below or type it, starting with your country code."
	promptPhoneRetry       = "That does not look like a phone number. Please type it with digits only, for example +15551234567."
	promptExtraInfo        = "Anything the organizers should know? Dietary needs, arrival time and so on. Send \"-\" or \"skip\" if not."
	promptPaymentProofFmt  = "Almost done! The price for <b>%s</b> is <b>%s</b>.\n%s\nWhen you have paid, send a photo or file of the payment receipt here. You can add a comment as the caption."
	promptProofRetry       = "Please send the payment receipt as a photo or a file."

	msgRegistrationDone = "Thank you! Your registration is in. An organizer will confirm your payment and you will get a group invite here."
	msgSubmitFailed     = "Something went wrong while submitting your registration. Please send the receipt again."
	msgDialogCancelled  = "Registration cancelled. You can start again from the menu at any time."

	contactButtonText = "Share my phone number"

	skipTokenDash = "-"
	skipTokenWord = "skip"
)
