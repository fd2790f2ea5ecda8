package config

type WorkerKeyStruct struct {
	GradingEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	GradingEventsQueue: "grading_events_queue",
}
