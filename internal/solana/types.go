package solana

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// AccountInfo represents Solana account information with raw decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      string // owning program (base58)
	Data       []byte // raw account data
	Executable bool
	RentEpoch  uint64
}
