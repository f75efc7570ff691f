package activity

// ListActivityOptions provides filtering options for listing activity.
type ListActivityOptions struct {
	WizardID     string
	StepKey      *string
	ActivityType *ActivityType
	Limit        int
	Offset       int
}
