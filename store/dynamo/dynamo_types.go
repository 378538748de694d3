package dynamo

import (
	"github.com/zlnvch/sessionq/store"
)

type dynamoSessionResult struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	SessionId string `dynamodbav:"SessionId"`
	Expected  int    `dynamodbav:"Expected"`
	Received  int    `dynamodbav:"Received"`
	Anomalies int    `dynamodbav:"Anomalies"`
	FirstSeq  int64  `dynamodbav:"FirstSeq"`
	LastSeq   int64  `dynamodbav:"LastSeq"`
	Completed int64  `dynamodbav:"Completed"`
}

// Map domain SessionResult -> Dynamo
func sessionResultToDynamo(r store.SessionResult) dynamoSessionResult {
	return dynamoSessionResult{
		PK:        "SESSION#" + r.SessionID,
		SK:        "RESULT",
		SessionId: r.SessionID,
		Expected:  r.Expected,
		Received:  r.Received,
		Anomalies: r.Anomalies,
		FirstSeq:  r.FirstSeq,
		LastSeq:   r.LastSeq,
		Completed: r.Completed,
	}
}

// Map Dynamo -> domain SessionResult
func sessionResultFromDynamo(dr dynamoSessionResult) store.SessionResult {
	return store.SessionResult{
		SessionID: dr.SessionId,
		Expected:  dr.Expected,
		Received:  dr.Received,
		Anomalies: dr.Anomalies,
		FirstSeq:  dr.FirstSeq,
		LastSeq:   dr.LastSeq,
		Completed: dr.Completed,
	}
}
