package envexec

// Status is the tagged outcome of a run
type Status int

// Defines run result status
const (
	// not initialized status (as error)
	StatusInvalid Status = iota

	// process exited (with any exit status or signal) before the deadline
	StatusCompleted

	// deadline reached, process group killed
	StatusTimeLimitExceeded

	// process could not be started or waited (missing program, pipe error, canceled)
	StatusFailed
)

var statusToString = []string{
	"Invalid",
	"Completed",
	"Time Limit Exceeded",
	"Failed",
}

func (s Status) String() string {
	si := int(s)
	if si < 0 || si >= len(statusToString) {
		return statusToString[0] // invalid
	}
	return statusToString[si]
}
