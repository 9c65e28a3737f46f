package index

// RequestReviews is the stored document holding every review submitted
// against one request. Matches the off-chain store's query contract:
// exact-match and membership filters on requestName.
type RequestReviews struct {
	RequestName string         `bson:"requestName" json:"requestName"`
	Reviews     []StoredReview `bson:"reviews" json:"reviews"`
}

// StoredReview is one review entry inside a RequestReviews document. The
// attestationID is filled in strictly after on-chain confirmation; it is
// what later amendment-chain lookups key on.
type StoredReview struct {
	Reviewer              string   `bson:"reviewer" json:"reviewer"`
	HypercertID           string   `bson:"hypercertID" json:"hypercertID"`
	Answers               []string `bson:"answers" json:"answers"`
	AttachmentsIpfsHashes []string `bson:"attachmentsIpfsHashes" json:"attachmentsIpfsHashes"`
	PDFIpfsHash           string   `bson:"pdfIpfsHash" json:"pdfIpfsHash"`
	AttestationID         string   `bson:"attestationID" json:"attestationID"`
	CreatedAt             int64    `bson:"createdAt" json:"createdAt"`

	// RequestName is populated on lookup results, not stored per entry.
	RequestName string `bson:"-" json:"requestName,omitempty"`
}

// StoredAmendment is one amendment record. All amendments of one review
// share the original review's attestation ID as refUID and are ordered
// by insertion.
type StoredAmendment struct {
	RefUID                string   `bson:"refUID" json:"refUID"`
	RequestName           string   `bson:"requestName" json:"requestName"`
	Reviewer              string   `bson:"reviewer" json:"reviewer"`
	Amendment             string   `bson:"amendment" json:"amendment"`
	AttachmentsIpfsHashes []string `bson:"attachmentsIpfsHashes" json:"attachmentsIpfsHashes"`
	PDFIpfsHash           string   `bson:"pdfIpfsHash" json:"pdfIpfsHash"`
	AttestationID         string   `bson:"attestationID" json:"attestationID"`
	CreatedAt             int64    `bson:"createdAt" json:"createdAt"`
}

// PendingIndexWrite records an attestation that was confirmed on-chain
// but whose index write failed. The reconciliation worker drains these.
type PendingIndexWrite struct {
	ID            string           `bson:"_id" json:"id"`
	Kind          string           `bson:"kind" json:"kind"` // "review" or "amendment"
	RequestName   string           `bson:"requestName" json:"requestName"`
	AttestationID string           `bson:"attestationID" json:"attestationID"`
	Review        *StoredReview    `bson:"review,omitempty" json:"review,omitempty"`
	Amendment     *StoredAmendment `bson:"amendment,omitempty" json:"amendment,omitempty"`
	Attempts      int              `bson:"attempts" json:"attempts"`
	CreatedAt     int64            `bson:"createdAt" json:"createdAt"`
}
