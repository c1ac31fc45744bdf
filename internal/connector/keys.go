package connector

// Session keys.
const (
	keyLastUserQuestion    = "lastUserQuestion"
	keyNoResultsCount      = "noResultsCount"
	keyNegativeRatingCount = "negativeRatingCount"
	keyAskingForEscalation = "askingForEscalation"
	keyEscalationType      = "escalationType"
	keyEscalationV2        = "escalationV2"
	keyEscalationForm      = "escalationForm"
	keyEscalationOfferYes  = "escalationOfferYes"
	keyAskingRatingComment = "askingRatingComment"
	keyChatOnGoing         = "chatOnGoing"
	keyChatActivePrefix    = "chatActive_"
	keyExitQueueCommand    = "exitQueueCommand"
	keyFederatedSubanswers = "federatedSubanswers"

	KeySurveyLaunch         = "surveyLaunch"
	KeySurveyConfirm        = "surveyConfirm"
	KeySurveyElements       = "surveyElements"
	KeySurveyExpectedValues = "surveyExpectedValues"
	KeySurveyExpectedLabels = "surveyExpectedLabels"
	KeySurveyWrongAnswers   = "surveyWrongAnswers"
	KeySurveyPendingElement = "surveyPendingElement"
	KeySurveyAskForContinue = "surveyAskForContinue"
	KeyFederatedSubanswers  = keyFederatedSubanswers
)

var surveyKeys = []string{
	KeySurveyLaunch,
	KeySurveyConfirm,
	KeySurveyElements,
	KeySurveyExpectedValues,
	KeySurveyExpectedLabels,
	KeySurveyWrongAnswers,
	KeySurveyPendingElement,
	KeySurveyAskForContinue,
}

// EscalationType records what triggered an escalation.
type EscalationType string

const (
	EscalationNoResults      EscalationType = "__escalation_type_no_results__"
	EscalationAPIFlag        EscalationType = "__escalation_type_api_flag__"
	EscalationNegativeRating EscalationType = "__escalation_type_negative_rating__"
	EscalationDirect         EscalationType = "__escalation_type_callback__"
	EscalationOffer          EscalationType = "__escalation_type_offer__"
)

// Contact events tracked to the bot.
const (
	EventChatAttended    = "CHAT_ATTENDED"
	EventChatNoAgents    = "CHAT_NO_AGENTS"
	EventContactRejected = "CONTACT_REJECTED"
)

// Utility commands typed by the user.
const (
	commandClearSession = "clear_user_session"
	commandShowUserID   = "show_user_id"
)
