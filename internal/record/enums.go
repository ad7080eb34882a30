// Vigil - Authentication Log Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package record

import "strings"

// Factor is the second factor used for an authentication.
type Factor int

const (
	FactorNone Factor = iota
	FactorDuoPush
	FactorBypass
	FactorRememberedDevice
	FactorSMSPasscode
	FactorPasscode
	FactorHardwareToken
	FactorPhoneCall
	FactorSecurityKey
)

var factorByRaw = map[string]Factor{
	"Duo Push":                FactorDuoPush,
	"n/a":                     FactorNone,
	"Bypass Status":           FactorBypass,
	"Bypass Code":             FactorBypass,
	"Remembered Device":       FactorRememberedDevice,
	"SMS Passcode":            FactorSMSPasscode,
	"Passcode":                FactorPasscode,
	"Hardware Token":          FactorHardwareToken,
	"Phone Call":              FactorPhoneCall,
	"Touch ID (WebAuthn)":     FactorSecurityKey,
	"Yubikey Passcode":        FactorSecurityKey,
	"Security Key (WebAuthn)": FactorSecurityKey,
}

// ParseFactor maps a raw factor string; unknown values map to FactorNone.
func ParseFactor(raw string) Factor {
	return factorByRaw[raw]
}

func (f Factor) String() string {
	switch f {
	case FactorDuoPush:
		return "Duo push"
	case FactorBypass:
		return "Bypass code"
	case FactorRememberedDevice:
		return "Remembered device"
	case FactorSMSPasscode:
		return "SMS passcode"
	case FactorPasscode:
		return "Passcode"
	case FactorHardwareToken:
		return "Hardware token"
	case FactorPhoneCall:
		return "Phone call"
	case FactorSecurityKey:
		return "Security Key"
	default:
		return "None"
	}
}

// MarshalText renders the analyst label.
func (f Factor) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// IntegrationKind enumerates the protected applications.
type IntegrationKind int

const (
	IntegrationNone IntegrationKind = iota
	IntegrationShibboleth
	IntegrationCitrix
	IntegrationCuVpn
	IntegrationLinux
	IntegrationAdfs
	IntegrationDmp
	IntegrationRdp
	IntegrationPasswordReset
	IntegrationSplunk
	IntegrationOther
)

// Integration is the application an authentication protected. Raw is only
// set for IntegrationOther so that two Integrations compare equal with ==
// exactly when they name the same application.
type Integration struct {
	Kind IntegrationKind
	Raw  string
}

var integrationByRaw = map[string]IntegrationKind{
	"Shibboleth":                                  IntegrationShibboleth,
	"Shibboleth External":                         IntegrationShibboleth,
	"Radius Proxy Duo Only (Citrix)":              IntegrationCitrix,
	"Clemson University VPN":                      IntegrationCuVpn,
	"UNIX Application (Palmetto)":                 IntegrationLinux,
	"School of Computing Linux Access":            IntegrationLinux,
	"CECAS Linux Fastx Access":                    IntegrationLinux,
	"Infrastucture Linux Host":                    IntegrationLinux,
	"adfs.clemson.edu":                            IntegrationAdfs,
	"Device Management Portal Protected Resource": IntegrationDmp,
	"Device Management Portal":                    IntegrationDmp,
	"Microsoft RDP Gateway":                       IntegrationRdp,
	"Password Reset on IDP":                       IntegrationPasswordReset,
	"CU Splunk":                                   IntegrationSplunk,
}

// ParseIntegration maps a raw integration name.
func ParseIntegration(raw string) Integration {
	if kind, ok := integrationByRaw[raw]; ok {
		return Integration{Kind: kind}
	}
	return Integration{Kind: IntegrationOther, Raw: raw}
}

func (i Integration) String() string {
	switch i.Kind {
	case IntegrationShibboleth:
		return "Shibboleth"
	case IntegrationCitrix:
		return "Citrix"
	case IntegrationCuVpn:
		return "CUVPN"
	case IntegrationLinux:
		return "Linux Access"
	case IntegrationAdfs:
		return "ADFS"
	case IntegrationDmp:
		return "Device Management"
	case IntegrationRdp:
		return "RDP"
	case IntegrationPasswordReset:
		return "Password Reset"
	case IntegrationSplunk:
		return "Splunk"
	case IntegrationOther:
		return i.Raw
	default:
		return "None"
	}
}

// MarshalText renders the analyst label.
func (i Integration) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// ReasonKind enumerates why the authentication service decided as it did.
type ReasonKind int

const (
	ReasonNone ReasonKind = iota
	ReasonUserApproved
	ReasonBypass
	ReasonRememberedDevice
	ReasonValidPasscode
	ReasonTrustedNetwork
	ReasonNoResponse
	ReasonUserCancelled
	ReasonInvalidPasscode
	ReasonDenyUnenrolledUser
	ReasonLockedOut
	ReasonUserMistake
	ReasonError
	ReasonRestrictedOFAC
	ReasonOther
)

// Reason carries the decision reason; Raw is only set for ReasonOther.
type Reason struct {
	Kind ReasonKind
	Raw  string
}

var reasonByRaw = map[string]ReasonKind{
	"user approved":            ReasonUserApproved,
	"trusted network":          ReasonTrustedNetwork,
	"remembered device":        ReasonRememberedDevice,
	"valid passcode":           ReasonValidPasscode,
	"bypass user":              ReasonBypass,
	"no response":              ReasonNoResponse,
	"user cancelled":           ReasonUserCancelled,
	"invalid passcode":         ReasonInvalidPasscode,
	"locked out":               ReasonLockedOut,
	"deny unenrolled user":     ReasonDenyUnenrolledUser,
	"error":                    ReasonError,
	"restricted ofac location": ReasonRestrictedOFAC,
	"user mistake":             ReasonUserMistake,
}

// ParseReason maps a raw reason, ignoring case.
func ParseReason(raw string) Reason {
	lower := strings.ToLower(raw)
	if kind, ok := reasonByRaw[lower]; ok {
		return Reason{Kind: kind}
	}
	return Reason{Kind: ReasonOther, Raw: lower}
}

func (r Reason) String() string {
	switch r.Kind {
	case ReasonUserApproved:
		return "User approved"
	case ReasonTrustedNetwork:
		return "Trusted network"
	case ReasonRememberedDevice:
		return "Remembered device"
	case ReasonValidPasscode:
		return "Valid passcode"
	case ReasonBypass:
		return "Bypass"
	case ReasonNoResponse:
		return "No response"
	case ReasonUserCancelled:
		return "User cancelled"
	case ReasonInvalidPasscode:
		return "Invalid passcode"
	case ReasonLockedOut:
		return "Locked out"
	case ReasonDenyUnenrolledUser:
		return "Deny unenrolled user"
	case ReasonError:
		return "Error"
	case ReasonRestrictedOFAC:
		return "Restricted Location"
	case ReasonUserMistake:
		return "User mistake"
	case ReasonOther:
		return r.Raw
	default:
		return "None"
	}
}

// MarshalText renders the analyst label.
func (r Reason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// ResultKind enumerates authentication outcomes.
type ResultKind int

const (
	ResultNone ResultKind = iota
	ResultSuccess
	ResultFailure
	ResultFraud
	ResultOther
)

// Result is the authentication outcome; Raw is only set for ResultOther.
type Result struct {
	Kind ResultKind
	Raw  string
}

// ParseResult maps SUCCESS, FAILURE and FRAUD; anything else is ResultOther.
func ParseResult(raw string) Result {
	switch raw {
	case "SUCCESS":
		return Result{Kind: ResultSuccess}
	case "FAILURE":
		return Result{Kind: ResultFailure}
	case "FRAUD":
		return Result{Kind: ResultFraud}
	default:
		return Result{Kind: ResultOther, Raw: raw}
	}
}

func (r Result) String() string {
	switch r.Kind {
	case ResultSuccess:
		return "Success"
	case ResultFailure:
		return "Failure"
	case ResultFraud:
		return "Fraud"
	case ResultOther:
		return r.Raw
	default:
		return "None"
	}
}

// MarshalText renders the analyst label.
func (r Result) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// FlagReason is why a record or account was flagged by scoring.
type FlagReason int

const (
	FlagFraud FlagReason = iota
	FlagFailure
	FlagDmp
	FlagTravel
)

func (f FlagReason) String() string {
	switch f {
	case FlagFraud:
		return "Fraud"
	case FlagFailure:
		return "Failure"
	case FlagDmp:
		return "DMP"
	case FlagTravel:
		return "Travel"
	default:
		return "Unknown"
	}
}

// MarshalText renders the analyst label.
func (f FlagReason) MarshalText() ([]byte, error) { return []byte(f.String()), nil }
