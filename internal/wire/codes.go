package wire

import ber "github.com/go-asn1-ber/asn1-ber"

// LDAPv3 application tags (RFC 4511 section 4.2 onwards).
const (
	ApplicationBindRequest           ber.Tag = 0
	ApplicationBindResponse          ber.Tag = 1
	ApplicationUnbindRequest         ber.Tag = 2
	ApplicationSearchRequest         ber.Tag = 3
	ApplicationSearchResultEntry     ber.Tag = 4
	ApplicationSearchResultDone      ber.Tag = 5
	ApplicationModifyRequest         ber.Tag = 6
	ApplicationModifyResponse        ber.Tag = 7
	ApplicationAddRequest            ber.Tag = 8
	ApplicationAddResponse           ber.Tag = 9
	ApplicationDelRequest            ber.Tag = 10
	ApplicationDelResponse           ber.Tag = 11
	ApplicationModifyDNRequest       ber.Tag = 12
	ApplicationModifyDNResponse      ber.Tag = 13
	ApplicationCompareRequest        ber.Tag = 14
	ApplicationCompareResponse       ber.Tag = 15
	ApplicationAbandonRequest        ber.Tag = 16
	ApplicationSearchResultReference ber.Tag = 19
	ApplicationExtendedRequest       ber.Tag = 23
	ApplicationExtendedResponse      ber.Tag = 24
	ApplicationIntermediateResponse  ber.Tag = 25
)

// Control and extended-operation OIDs this client speaks.
const (
	OIDPagedResults    = "1.2.840.113556.1.4.319"  // RFC 2696
	OIDServerSideSort  = "1.2.840.113556.1.4.473"  // RFC 2891 request
	OIDSortResponse    = "1.2.840.113556.1.4.474"  // RFC 2891 response
	OIDWhoAmI          = "1.3.6.1.4.1.4203.1.11.3" // RFC 4532
	OIDStartTLS        = "1.3.6.1.4.1.1466.20037"  // RFC 4511 section 4.14
	OIDNoticeOfDisconn = "1.3.6.1.4.1.1466.20036"
)

// LDAP result codes (RFC 4511 appendix A).
const (
	ResultSuccess                  = 0
	ResultOperationsError          = 1
	ResultProtocolError            = 2
	ResultTimeLimitExceeded        = 3
	ResultSizeLimitExceeded        = 4
	ResultCompareFalse             = 5
	ResultCompareTrue              = 6
	ResultAuthMethodNotSupported   = 7
	ResultStrongerAuthRequired     = 8
	ResultPartialResults           = 9 // obsolete LDAPv2 code, still emitted by some servers
	ResultReferral                 = 10
	ResultAdminLimitExceeded       = 11
	ResultUnavailableCritExtension = 12
	ResultConfidentialityRequired  = 13
	ResultSaslBindInProgress       = 14
	ResultNoSuchAttribute          = 16
	ResultUndefinedAttributeType   = 17
	ResultInappropriateMatching    = 18
	ResultConstraintViolation      = 19
	ResultAttributeOrValueExists   = 20
	ResultInvalidAttributeSyntax   = 21
	ResultNoSuchObject             = 32
	ResultAliasProblem             = 33
	ResultInvalidDNSyntax          = 34
	ResultAliasDerefProblem        = 36
	ResultInappropriateAuth        = 48
	ResultInvalidCredentials       = 49
	ResultInsufficientAccess       = 50
	ResultBusy                     = 51
	ResultUnavailable              = 52
	ResultUnwillingToPerform       = 53
	ResultLoopDetect               = 54
	ResultNamingViolation          = 64
	ResultObjectClassViolation     = 65
	ResultNotAllowedOnNonLeaf      = 66
	ResultNotAllowedOnRDN          = 67
	ResultEntryAlreadyExists       = 68
	ResultObjectClassModsProhib    = 69
	ResultAffectsMultipleDSAs      = 71
	ResultOther                    = 80
)

// resultText maps result codes to the standard short descriptions, mirroring
// ldap_err2string. Unknown codes fall back to "unknown error".
var resultText = map[int]string{
	ResultSuccess:                  "success",
	ResultOperationsError:          "operations error",
	ResultProtocolError:            "protocol error",
	ResultTimeLimitExceeded:        "time limit exceeded",
	ResultSizeLimitExceeded:        "size limit exceeded",
	ResultCompareFalse:             "compare false",
	ResultCompareTrue:              "compare true",
	ResultAuthMethodNotSupported:   "auth method not supported",
	ResultStrongerAuthRequired:     "stronger auth required",
	ResultPartialResults:           "partial results and referral received",
	ResultReferral:                 "referral",
	ResultAdminLimitExceeded:       "administrative limit exceeded",
	ResultUnavailableCritExtension: "unavailable critical extension",
	ResultConfidentialityRequired:  "confidentiality required",
	ResultSaslBindInProgress:       "SASL bind in progress",
	ResultNoSuchAttribute:          "no such attribute",
	ResultUndefinedAttributeType:   "undefined attribute type",
	ResultInappropriateMatching:    "inappropriate matching",
	ResultConstraintViolation:      "constraint violation",
	ResultAttributeOrValueExists:   "attribute or value exists",
	ResultInvalidAttributeSyntax:   "invalid attribute syntax",
	ResultNoSuchObject:             "no such object",
	ResultAliasProblem:             "alias problem",
	ResultInvalidDNSyntax:          "invalid DN syntax",
	ResultAliasDerefProblem:        "alias dereferencing problem",
	ResultInappropriateAuth:        "inappropriate authentication",
	ResultInvalidCredentials:       "invalid credentials",
	ResultInsufficientAccess:       "insufficient access rights",
	ResultBusy:                     "server is busy",
	ResultUnavailable:              "server is unavailable",
	ResultUnwillingToPerform:       "server is unwilling to perform",
	ResultLoopDetect:               "loop detected",
	ResultNamingViolation:          "naming violation",
	ResultObjectClassViolation:     "object class violation",
	ResultNotAllowedOnNonLeaf:      "operation not allowed on non-leaf",
	ResultNotAllowedOnRDN:          "operation not allowed on RDN",
	ResultEntryAlreadyExists:       "entry already exists",
	ResultObjectClassModsProhib:    "object class modifications prohibited",
	ResultAffectsMultipleDSAs:      "affects multiple DSAs",
	ResultOther:                    "other error",
}

// ResultText returns the standard description for a result code.
func ResultText(code int) string {
	if text, ok := resultText[code]; ok {
		return text
	}
	return "unknown error"
}
