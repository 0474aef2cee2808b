package challenge

type CheckInRequest struct {
	CompletedTasks []string `json:"completed_tasks" validate:"max=50,dive,required,max=100"`
	Notes          string   `json:"notes" validate:"max=1000"`
}

type CheckInResponse struct {
	Participant *Participant `json:"participant"`
	Progress    *Progress    `json:"progress,omitempty"`
	Reset       bool         `json:"reset"`
	Completed   bool         `json:"completed"`
}

type ChallengeWithParticipation struct {
	*Challenge
	Participation *Participant `json:"participation,omitempty"`
}

type JoinResponse struct {
	Participant *Participant `json:"participant"`
	Rejoined    bool         `json:"rejoined"`
}
