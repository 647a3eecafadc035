package config

type WorkerKeyStruct struct {
	PersistAnswersQueue       string
	PersistQuestionOrderQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAnswersQueue:       "persist_answers_queue",
	PersistQuestionOrderQueue: "persist_question_order_queue",
}
