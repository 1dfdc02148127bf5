// Package config loads the ssomap configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file named by SSOMAP_CONFIG_FILE, and environment variables.
// The result is validated once and treated as immutable afterwards.
//
// # SSO Variables
//
//	SSO_CLIENT_ID, SSO_CLIENT_SECRET, SSO_AUTHORITY, SSO_CALLBACK_URL
//	SSO_SCOPES                    extra scopes, comma or space separated
//	SSO_ROLES_ENABLED             map a role claim to none/user/admin
//	SSO_ROLES_DEFAULT_TO_USER     grant user when the role claim is missing
//	SSO_ROLES_TOKEN_PATH          default /resource_access/{client_id}/roles
//	SSO_ORGANIZATIONS_INVITE      enroll users into orgs named by a claim
//	SSO_ORGANIZATIONS_TOKEN_PATH  default /groups
//
// Process settings use the SSOMAP_ prefix (SSOMAP_PORT, SSOMAP_DB_DRIVER,
// SSOMAP_DB_DSN, SSOMAP_REDIS_URL, SSOMAP_SMTP_HOST, SSOMAP_INVITE_SECRET,
// SSOMAP_LOG_LEVEL, SSOMAP_OTEL_ENABLED and so on).
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	service := sso.NewService(cfg.SSOSettings(), deps)
package config
