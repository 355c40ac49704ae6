package testutil

// FailingCopier always reports the scripted error.
type FailingCopier struct {
	Err error
}

func (c *FailingCopier) Copy(src, dst string) error {
	return c.Err
}

// PhantomCopier reports success without producing the destination file.
// Exercises the engine's independent post-copy verification.
type PhantomCopier struct{}

func (PhantomCopier) Copy(src, dst string) error {
	return nil
}
