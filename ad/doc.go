// Package ad decodes the binary attribute formats Active Directory uses
// for security identifiers (objectSid), GUIDs (objectGUID) and security
// descriptors (nTSecurityDescriptor).
package ad
