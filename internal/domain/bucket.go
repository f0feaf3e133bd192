package domain

// Bucket is the reporting category a ticket status resolves into.
type Bucket string

const (
	BucketWorking Bucket = "WORKING"
	BucketDone    Bucket = "DONE"
	BucketHold    Bucket = "HOLD"
)

// Buckets lists every bucket in display order.
func Buckets() []Bucket {
	return []Bucket{BucketWorking, BucketDone, BucketHold}
}
