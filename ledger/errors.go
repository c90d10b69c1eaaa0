package ledger

import "fmt"

type Class int

const (
	ClassAuthorization Class = iota + 1
	ClassDuplicate
	ClassNotFound
	ClassInsufficientFunds
	ClassGateNotSatisfied
	ClassTransactionDispatch
	ClassConflict
)

func (c Class) String() string {
	switch c {
	case ClassAuthorization:
		return "Authorization"
	case ClassDuplicate:
		return "Duplicate"
	case ClassNotFound:
		return "NotFound"
	case ClassInsufficientFunds:
		return "InsufficientFunds"
	case ClassGateNotSatisfied:
		return "GateNotSatisfied"
	case ClassTransactionDispatch:
		return "TransactionDispatch"
	case ClassConflict:
		return "Conflict"
	}
	return fmt.Sprintf("Class(%d)", int(c))
}

// Reason identifies why an operation was aborted. Reasons double as the
// notification kinds delivered to notifiers.
type Reason int

const (
	AlreadyApproved Reason = iota + 1
	NoAuthToMintL2ENFT
	NoAuthToApproveL2EToken
	TransactionFailed
	NoExistVaraApprove
	NoExistTokenApprove
	NoExistNFTApprove
	InsufficientApproveVaras
	InsufficientApproveTokens
	InsufficientOwnerDepositTokens
	NoClaimedNFT
	NoAuthorityAddContractAddress
	NoAuthorityAddAuthTokenOwner
	AlreadyExistTokenAddress
	AlreadyExistNFTAddress
	AlreadyExistAuthAddress
	GatewayCallFailed
	OperationPending
	AmountOverflow
)

var reasons = map[Reason]struct {
	name  string
	class Class
}{
	AlreadyApproved:                {"AlreadyApproved", ClassDuplicate},
	NoAuthToMintL2ENFT:             {"NoAuthToMintL2ENFT", ClassAuthorization},
	NoAuthToApproveL2EToken:        {"NoAuthToApproveL2EToken", ClassAuthorization},
	TransactionFailed:              {"TransactionFailed", ClassTransactionDispatch},
	NoExistVaraApprove:             {"NoExistVaraApprove", ClassNotFound},
	NoExistTokenApprove:            {"NoExistTokenApprove", ClassNotFound},
	NoExistNFTApprove:              {"NoExistNFTApprove", ClassNotFound},
	InsufficientApproveVaras:       {"InsufficientApproveVaras", ClassInsufficientFunds},
	InsufficientApproveTokens:      {"InsufficientApproveTokens", ClassInsufficientFunds},
	InsufficientOwnerDepositTokens: {"InsufficientOwnerDepositTokens", ClassInsufficientFunds},
	NoClaimedNFT:                   {"NoClaimedNFT", ClassGateNotSatisfied},
	NoAuthorityAddContractAddress:  {"NoAuthorityAddContractAddress", ClassAuthorization},
	NoAuthorityAddAuthTokenOwner:   {"NoAuthorityAddAuthTokenOwner", ClassAuthorization},
	AlreadyExistTokenAddress:       {"AlreadyExistTokenAddress", ClassDuplicate},
	AlreadyExistNFTAddress:         {"AlreadyExistNFTAddress", ClassDuplicate},
	AlreadyExistAuthAddress:        {"AlreadyExistAuthAddress", ClassDuplicate},
	GatewayCallFailed:              {"GatewayCallFailed", ClassTransactionDispatch},
	OperationPending:               {"OperationPending", ClassConflict},
	AmountOverflow:                 {"AmountOverflow", ClassInsufficientFunds},
}

func (r Reason) String() string {
	if d, ok := reasons[r]; ok {
		return d.name
	}
	return fmt.Sprintf("Reason(%d)", int(r))
}

func (r Reason) Class() Class {
	return reasons[r].class
}

// Error is the terminal result of an aborted operation. Two errors match
// under errors.Is when they carry the same reason, so callers compare
// against the Err* values below.
type Error struct {
	Reason Reason
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Reason.String()
	}
	return e.Reason.String() + ": " + e.Detail
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

func (e *Error) Class() Class {
	return e.Reason.Class()
}

var (
	ErrAlreadyApproved                = &Error{Reason: AlreadyApproved}
	ErrNoAuthToMintL2ENFT             = &Error{Reason: NoAuthToMintL2ENFT}
	ErrNoAuthToApproveL2EToken        = &Error{Reason: NoAuthToApproveL2EToken}
	ErrTransactionFailed              = &Error{Reason: TransactionFailed}
	ErrNoExistVaraApprove             = &Error{Reason: NoExistVaraApprove}
	ErrNoExistTokenApprove            = &Error{Reason: NoExistTokenApprove}
	ErrNoExistNFTApprove              = &Error{Reason: NoExistNFTApprove}
	ErrInsufficientApproveVaras       = &Error{Reason: InsufficientApproveVaras}
	ErrInsufficientApproveTokens      = &Error{Reason: InsufficientApproveTokens}
	ErrInsufficientOwnerDepositTokens = &Error{Reason: InsufficientOwnerDepositTokens}
	ErrNoClaimedNFT                   = &Error{Reason: NoClaimedNFT}
	ErrNoAuthorityAddContractAddress  = &Error{Reason: NoAuthorityAddContractAddress}
	ErrNoAuthorityAddAuthTokenOwner   = &Error{Reason: NoAuthorityAddAuthTokenOwner}
	ErrAlreadyExistTokenAddress       = &Error{Reason: AlreadyExistTokenAddress}
	ErrAlreadyExistNFTAddress         = &Error{Reason: AlreadyExistNFTAddress}
	ErrAlreadyExistAuthAddress        = &Error{Reason: AlreadyExistAuthAddress}
	ErrGatewayCallFailed              = &Error{Reason: GatewayCallFailed}
	ErrOperationPending               = &Error{Reason: OperationPending}
	ErrAmountOverflow                 = &Error{Reason: AmountOverflow}
)
