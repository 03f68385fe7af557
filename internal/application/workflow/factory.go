package workflow

import (
	domainwf "github.com/garyjia/invoice-booking/internal/domain/workflow"
)

// BuildDocumentStateMachine creates a state machine configured for the document lifecycle
func BuildDocumentStateMachine(initialState domainwf.State) domainwf.StateMachine {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerStartProcessing, domainwf.StateProcessing).
		Permit(domainwf.TriggerFail, domainwf.StateError)

	builder.Configure(domainwf.StateProcessing).
		Permit(domainwf.TriggerCompleteExtraction, domainwf.StateExtracted).
		Permit(domainwf.TriggerFail, domainwf.StateError)

	builder.Configure(domainwf.StateExtracted).
		Permit(domainwf.TriggerValidate, domainwf.StateValidated).
		Permit(domainwf.TriggerFail, domainwf.StateError)

	builder.Configure(domainwf.StateValidated).
		Permit(domainwf.TriggerCompleteUpload, domainwf.StateUploaded).
		Permit(domainwf.TriggerFail, domainwf.StateError)

	builder.Configure(domainwf.StateUploaded).
		Permit(domainwf.TriggerCompleteBooking, domainwf.StateBooked).
		Permit(domainwf.TriggerFail, domainwf.StateError)

	// a failed document only leaves ERROR through a retry
	builder.Configure(domainwf.StateError).
		Permit(domainwf.TriggerRetry, domainwf.StateProcessing)

	// BOOKED is terminal - no outgoing transitions

	return builder.Build(initialState)
}
