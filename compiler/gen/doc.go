// Package gen emits Go source for generated instances.
//
// Each task becomes one file holding a struct type with a field per child
// feature of the task, one variable per named instance, and an index of
// all instances in rank order:
//
//	// PasswordBasedEncryption is a configuration of the PasswordBasedEncryption task.
//	type PasswordBasedEncryption struct {
//		Kda    string
//		Digest string
//		Cipher string
//	}
//
//	// PbkdfSha256Aes is "PBKDF+SHA-256+AES".
//	var PbkdfSha256Aes = PasswordBasedEncryption{...}
//
// Field names drop the "c<N>_" prefix of feature names and are camel cased.
// Integer, string and boolean leaves keep their Go type; leaves referencing
// other instances hold the display name of the referenced instance.
//
// Usage:
//
//	g, err := gen.New(gen.WithPackage("pbe"), gen.WithTarget("./pbe"))
//	if err != nil {
//		return err
//	}
//	f, err := g.Task(task, result)
//	if err != nil {
//		return err
//	}
//	return g.WriteAll(ctx, f)
package gen
