package ldapline

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldap/v3/gssapi"
	krb5client "github.com/jcmturner/gokrb5/v8/client"

	"github.com/ldapline/ldapline/internal/wire"
)

// bindExternal runs a SASL EXTERNAL bind: the identity comes from the
// secure channel (client certificate), so the only credential is an
// optional authorization identity.
func (c *Conn) bindExternal() error {
	env, err := c.exchange(wire.BindSASL("EXTERNAL", []byte(c.cfg.AuthzID)), nil)
	if err != nil {
		return err
	}
	res, err := wire.ParseResult(env.Op)
	if err != nil {
		return decodeError("bind", err)
	}
	if !res.Success() {
		return protocolError("bind", res)
	}
	return nil
}

// bindGSSAPI runs the GSSAPI SASL conversation: context establishment
// token exchanges until the security context is up, then the security
// layer negotiation round.
func (c *Conn) bindGSSAPI() error {
	client, err := c.gssapiClient()
	if err != nil {
		return err
	}
	defer client.DeleteSecContext()

	spn := c.cfg.KerberosSPN
	if spn == "" {
		spn = "ldap/" + c.url.Host
	}

	token, needMore, err := client.InitSecContext(spn, nil)
	if err != nil {
		return resourceError("bind", "GSSAPI context: %v", err)
	}
	for {
		env, err := c.exchange(wire.BindSASL("GSSAPI", token), nil)
		if err != nil {
			return err
		}
		res, err := wire.ParseResult(env.Op)
		if err != nil {
			return decodeError("bind", err)
		}
		switch res.Code {
		case wire.ResultSuccess:
			return nil
		case wire.ResultSaslBindInProgress:
		default:
			return protocolError("bind", res)
		}

		serverToken := wire.SASLCreds(env.Op)
		if needMore {
			token, needMore, err = client.InitSecContext(spn, serverToken)
			if err != nil {
				return resourceError("bind", "GSSAPI context: %v", err)
			}
			continue
		}
		token, err = client.NegotiateSaslAuth(serverToken, c.cfg.AuthzID)
		if err != nil {
			return resourceError("bind", "GSSAPI security layer: %v", err)
		}
	}
}

// gssapiClient builds a Kerberos client from the configured credential
// material, trying the credential cache first, then a keytab, then the
// identity's password.
func (c *Conn) gssapiClient() (ldap.GSSAPIClient, error) {
	krb5conf := c.cfg.KerberosConfig
	if krb5conf == "" {
		krb5conf = "/etc/krb5.conf"
	}
	user, realm := c.cfg.AuthcID, c.cfg.Realm
	if realm == "" && strings.Contains(user, "@") {
		parts := strings.SplitN(user, "@", 2)
		user, realm = parts[0], parts[1]
	}

	if cc := c.cfg.KerberosCCache; cc != "" {
		return gssapi.NewClientFromCCache(cc, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if cc := defaultCCachePath(); fileExists(cc) {
		return gssapi.NewClientFromCCache(cc, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if kt := c.cfg.KerberosKeytab; kt != "" {
		return gssapi.NewClientWithKeytab(user, realm, kt, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	if c.cfg.Password != "" {
		return gssapi.NewClientWithPassword(user, realm, c.cfg.Password, krb5conf, krb5client.DisablePAFXFAST(true))
	}
	return nil, usageError("bind", "no Kerberos credentials: provide a credential cache, a keytab, or a password")
}

func defaultCCachePath() string {
	if cc := os.Getenv("KRB5CCNAME"); cc != "" {
		return strings.TrimPrefix(cc, "FILE:")
	}
	return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid())
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
