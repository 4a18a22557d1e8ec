package schema

// BuiltinVersion is the version of the builtin snapshot.
const BuiltinVersion = "2026.10"

// Option names of the builtin snapshot.
const (
	OptBackend      = "backend"
	OptFrontend     = "frontend"
	OptAPI          = "api"
	OptDatabase     = "database"
	OptORM          = "orm"
	OptAuth         = "auth"
	OptAuthProvider = "auth_provider"
	OptDeploy       = "deploy"
)

// None is the value every optional axis uses for "not generated".
const None = "none"

// Values of the builtin snapshot.
const (
	BackendChi  = "chi"
	BackendEcho = "echo"
	BackendGin  = "gin"

	FrontendReact  = "react"
	FrontendSvelte = "svelte"
	FrontendVue    = "vue"

	APIRest    = "rest"
	APIGraphQL = "graphql"

	DatabaseSQLite   = "sqlite"
	DatabasePostgres = "postgres"
	DatabaseMySQL    = "mysql"

	ORMVelox = "velox"
	ORMSqlc  = "sqlc"
	ORMGorm  = "gorm"

	AuthEnabled  = "enabled"
	AuthDisabled = "disabled"

	ProviderClerk = "clerk"
	ProviderLocal = "local"
	ProviderOIDC  = "oidc"

	DeployDocker = "docker"
	DeployFly    = "fly"
)

var builtin = MustNew(BuiltinVersion,
	Option{
		Name:        OptBackend,
		Values:      []string{BackendChi, BackendEcho, BackendGin, None},
		Default:     BackendChi,
		Description: "HTTP framework of the generated server",
	},
	Option{
		Name:        OptFrontend,
		Values:      []string{FrontendReact, FrontendSvelte, FrontendVue, None},
		Default:     FrontendReact,
		Description: "Web client framework",
	},
	Option{
		Name:        OptAPI,
		Values:      []string{APIRest, APIGraphQL},
		Default:     APIRest,
		Description: "API style between client and server",
	},
	Option{
		Name:        OptDatabase,
		Values:      []string{DatabaseSQLite, DatabasePostgres, DatabaseMySQL, None},
		Default:     DatabaseSQLite,
		Description: "Database engine",
	},
	Option{
		Name:        OptORM,
		Values:      []string{ORMVelox, ORMSqlc, ORMGorm, None},
		Default:     ORMVelox,
		Description: "Data access layer",
	},
	Option{
		Name:        OptAuth,
		Values:      []string{AuthEnabled, AuthDisabled},
		Default:     AuthDisabled,
		Description: "Generate the authentication bridge",
	},
	Option{
		Name:        OptAuthProvider,
		Values:      []string{None, ProviderClerk, ProviderLocal, ProviderOIDC},
		Default:     None,
		Description: "Issuing subsystem of client session tokens",
	},
	Option{
		Name:        OptDeploy,
		Values:      []string{DeployDocker, DeployFly, None},
		Default:     DeployDocker,
		Description: "Deployment target",
	},
)

// Builtin returns the snapshot shipped with stackgen.
func Builtin() *Snapshot { return builtin }
