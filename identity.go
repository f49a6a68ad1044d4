package sigident

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/mdean75/sigident/dn"
	"github.com/mdean75/sigident/internal/container"
	"github.com/mdean75/sigident/internal/negcache"
	"github.com/mdean75/sigident/logger"
)

// DefaultConcurrency is the number of files ExtractAll works on at once.
const DefaultConcurrency = 4

// DefaultMaxSignatureSize bounds the signature block read from a file.
const DefaultMaxSignatureSize = container.DefaultMaxSignatureSize

// SigningIdentity describes who signed a file and whether it is trusted.
// When no certificate could be read every field is empty and Trusted is
// false.
type SigningIdentity struct {
	// IssuerDistinguishedName is the RFC 2253 rendering of the signer
	// certificate's issuer, e.g. "CN=Example CA,O=Example,C=US".
	IssuerDistinguishedName string

	// IssuerOrganization is the first O attribute of the issuer, or empty.
	IssuerOrganization string

	SubjectDistinguishedName string
	SubjectOrganization      string

	// PublicKeyFingerprint is the upper-case hex encoding of the signer's
	// subjectPublicKey bits.
	PublicKeyFingerprint string

	Trusted bool

	// Verdict is the classified trust engine result.
	Verdict TrustVerdict
}

// sharedCache is used by every Extractor that does not ask for its own cache
// size, window or clock.
var sharedCache = func() *negcache.Cache {
	c, err := negcache.New(negcache.DefaultSize, negcache.DefaultWindow, nil)
	if err != nil {
		panic(err)
	}
	return c
}()

// Extractor reads signing identities. It is safe for concurrent use.
type Extractor struct {
	fs         afero.Fs
	log        logger.Logger
	configLog  logger.Logger
	engine     TrustEngine
	classifier *Classifier
	cache      *negcache.Cache

	privateCache     bool
	cacheSize        int
	cacheWindow      time.Duration
	clock            func() time.Time
	maxSignatureSize int64
	concurrency      int
	trustRoots       string
}

// New returns an Extractor configured by opts. Every invalid option is
// reported; the errors are joined.
func New(opts ...Option) (*Extractor, error) {
	e := &Extractor{
		fs:               afero.NewOsFs(),
		cacheSize:        negcache.DefaultSize,
		cacheWindow:      negcache.DefaultWindow,
		maxSignatureSize: DefaultMaxSignatureSize,
		concurrency:      DefaultConcurrency,
	}

	var errs []error
	for _, opt := range opts {
		if opt == nil {
			errs = append(errs, newConfigError("option is nil"))
			continue
		}
		if err := opt.apply(e); err != nil {
			errs = append(errs, err)
		}
	}
	if err := joinErrors(errs); err != nil {
		return nil, err
	}

	switch {
	case e.log != nil:
	case e.configLog != nil:
		e.log = e.configLog
	default:
		e.log = logger.Default()
	}

	e.cache = sharedCache
	if e.privateCache {
		c, err := negcache.New(e.cacheSize, e.cacheWindow, e.clock)
		if err != nil {
			return nil, wrapError(CodeInvalidConfiguration, "building negative cache", err)
		}
		e.cache = c
	}

	if e.engine == nil {
		engine, err := defaultTrustEngine(e)
		if err != nil {
			return nil, err
		}
		e.engine = engine
	}
	e.classifier = NewClassifier(e.engine, e.log)
	return e, nil
}

// Extract reads the signing identity of the file at path. It never fails: a
// missing, unsigned or unreadable file yields the zero SigningIdentity. Trust
// is evaluated anew on every call.
func (e *Extractor) Extract(path string) SigningIdentity {
	cert, failure := e.load(path)
	switch failure {
	case 0:
	case LoadNotFound:
		e.log.Warning("Can not find %s to get properties", path)
		return SigningIdentity{}
	default:
		return SigningIdentity{}
	}

	issuer := dn.Parse(cert.Issuer)
	subject := dn.Parse(cert.Subject)
	verdict := e.classifier.Classify(path)

	return SigningIdentity{
		IssuerDistinguishedName:  cert.Issuer,
		IssuerOrganization:       issuer.Organization(),
		SubjectDistinguishedName: cert.Subject,
		SubjectOrganization:      subject.Organization(),
		PublicKeyFingerprint:     cert.PublicKey,
		Trusted:                  verdict.Trusted(),
		Verdict:                  verdict,
	}
}

// ExtractAll extracts the identities of paths, in order, working on up to the
// configured concurrency at once. If ctx is cancelled before every path was
// started it returns ctx.Err(); extractions already running finish and the
// slots of paths never started stay zero.
func (e *Extractor) ExtractAll(ctx context.Context, paths []string) ([]SigningIdentity, error) {
	results := make([]SigningIdentity, len(paths))

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	started := 0
	for i, path := range paths {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = e.Extract(path)
			return nil
		})
		started++
	}
	_ = g.Wait()

	if started < len(paths) {
		return results, ctx.Err()
	}
	return results, nil
}

var defaultExtractor = sync.OnceValues(func() (*Extractor, error) {
	return New()
})

// Extract reads the signing identity of path with a default Extractor.
func Extract(path string) SigningIdentity {
	e, err := defaultExtractor()
	if err != nil {
		return SigningIdentity{}
	}
	return e.Extract(path)
}
