package workflow

// Trigger is the cause of a document status transition
type Trigger string

const (
	TriggerStartProcessing    Trigger = "START_PROCESSING"
	TriggerCompleteExtraction Trigger = "COMPLETE_EXTRACTION"
	TriggerValidate           Trigger = "VALIDATE"
	TriggerCompleteUpload     Trigger = "COMPLETE_UPLOAD"
	TriggerCompleteBooking    Trigger = "COMPLETE_BOOKING"
	TriggerFail               Trigger = "FAIL"
	TriggerRetry              Trigger = "RETRY"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
