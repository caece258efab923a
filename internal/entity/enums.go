package entity

import "fmt"

// SpaceTask is the kind of problem a Coretex space is set up for.
type SpaceTask int

const (
	SpaceTaskComputerVision        SpaceTask = 1
	SpaceTaskImageSegmentation     SpaceTask = 2
	SpaceTaskTabularDataProcessing SpaceTask = 3
	SpaceTaskSuperResolution       SpaceTask = 4
	SpaceTaskVideoAnalytics        SpaceTask = 5
	SpaceTaskAudioAnalytics        SpaceTask = 6
	SpaceTaskBodyTracking          SpaceTask = 7
	SpaceTaskOther                 SpaceTask = 8
	SpaceTaskMotionRecognition     SpaceTask = 9
	SpaceTaskNLP                   SpaceTask = 10
	SpaceTaskBioInformatics        SpaceTask = 11
)

var spaceTaskNames = map[SpaceTask]string{
	SpaceTaskComputerVision:        "computerVision",
	SpaceTaskImageSegmentation:     "imageSegmentation",
	SpaceTaskTabularDataProcessing: "tabularDataProcessing",
	SpaceTaskSuperResolution:       "superResolution",
	SpaceTaskVideoAnalytics:        "videoAnalytics",
	SpaceTaskAudioAnalytics:        "audioAnalytics",
	SpaceTaskBodyTracking:          "bodyTracking",
	SpaceTaskOther:                 "other",
	SpaceTaskMotionRecognition:     "motionRecognition",
	SpaceTaskNLP:                   "nlp",
	SpaceTaskBioInformatics:        "bioInformatics",
}

func (t SpaceTask) String() string {
	if name, ok := spaceTaskNames[t]; ok {
		return name
	}
	return fmt.Sprintf("SpaceTask(%d)", int(t))
}

// IsValid reports whether t is a known task.
func (t SpaceTask) IsValid() bool {
	_, ok := spaceTaskNames[t]
	return ok
}

// ExperimentStatus is the lifecycle state of an experiment.
type ExperimentStatus int

const (
	StatusQueued               ExperimentStatus = 1
	StatusPreparingToStart     ExperimentStatus = 2
	StatusInProgress           ExperimentStatus = 3
	StatusCompletedWithSuccess ExperimentStatus = 4
	StatusCompletedWithError   ExperimentStatus = 5
	StatusStopped              ExperimentStatus = 6
	StatusStopping             ExperimentStatus = 7
)

var statusInfo = map[ExperimentStatus]struct{ name, message string }{
	StatusQueued:               {"queued", "Experiment scheduled to start"},
	StatusPreparingToStart:     {"preparingToStart", "Preparing to start the experiment"},
	StatusInProgress:           {"inProgress", "Experiment in progress"},
	StatusCompletedWithSuccess: {"completedWithSuccess", "Experiment completed successfully"},
	StatusCompletedWithError:   {"completedWithError", "Experiment failed with an error"},
	StatusStopped:              {"stopped", "Experiment has been stopped"},
	StatusStopping:             {"stopping", "Stopping the experiment"},
}

func (s ExperimentStatus) String() string {
	if info, ok := statusInfo[s]; ok {
		return info.name
	}
	return fmt.Sprintf("ExperimentStatus(%d)", int(s))
}

// IsValid reports whether s is a known status.
func (s ExperimentStatus) IsValid() bool {
	_, ok := statusInfo[s]
	return ok
}

// DefaultMessage is sent with a status update that has no message.
func (s ExperimentStatus) DefaultMessage() string {
	return statusInfo[s].message
}

// IsFinal reports whether the experiment can no longer change state.
func (s ExperimentStatus) IsFinal() bool {
	return s == StatusCompletedWithSuccess || s == StatusCompletedWithError || s == StatusStopped
}

// ParseExperimentStatus accepts a status name ("inProgress") or its
// number ("3").
func ParseExperimentStatus(v string) (ExperimentStatus, error) {
	for s, info := range statusInfo {
		if info.name == v || fmt.Sprint(int(s)) == v {
			return s, nil
		}
	}
	return 0, fmt.Errorf("invalid experiment status: %q", v)
}
