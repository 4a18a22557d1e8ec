package compat

import "github.com/syssam/stackgen/schema"

// BuiltinRules returns the rules shipped with stackgen, in evaluation order.
func BuiltinRules() []Rule {
	return []Rule{
		Forbids("empty-project",
			Is(schema.OptBackend, schema.None), Is(schema.OptFrontend, schema.None),
			"nothing to generate: backend and frontend are both none"),
		Requires("database-requires-backend",
			IsNot(schema.OptDatabase, schema.None), IsNot(schema.OptBackend, schema.None),
			"database {database} requires a backend"),
		Requires("graphql-requires-backend",
			Is(schema.OptAPI, schema.APIGraphQL), IsNot(schema.OptBackend, schema.None),
			"graphql api requires a backend"),
		Requires("orm-requires-database",
			IsNot(schema.OptORM, schema.None), IsNot(schema.OptDatabase, schema.None),
			"orm {orm} requires a database"),
		Requires("auth-requires-backend",
			Is(schema.OptAuth, schema.AuthEnabled), IsNot(schema.OptBackend, schema.None),
			"auth requires a backend to bridge sessions"),
		Requires("auth-requires-provider",
			Is(schema.OptAuth, schema.AuthEnabled), IsNot(schema.OptAuthProvider, schema.None),
			"auth enabled requires an auth provider"),
		Requires("provider-requires-auth",
			IsNot(schema.OptAuthProvider, schema.None), Is(schema.OptAuth, schema.AuthEnabled),
			"auth provider {auth_provider} requires auth to be enabled"),
		Requires("local-auth-requires-database",
			Is(schema.OptAuthProvider, schema.ProviderLocal), IsNot(schema.OptDatabase, schema.None),
			"local auth stores credentials in the database"),
		Requires("fly-requires-backend",
			Is(schema.OptDeploy, schema.DeployFly), IsNot(schema.OptBackend, schema.None),
			"deploy target fly runs the backend container"),
	}
}

var builtin = MustNewMatrix(schema.Builtin(), BuiltinRules()...)

// BuiltinMatrix returns the matrix of the builtin snapshot and rules.
func BuiltinMatrix() *Matrix { return builtin }
