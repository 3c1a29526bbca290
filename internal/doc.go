// Package internal contains the core implementation packages for docma.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - compiler: Source tree to template package, with watch mode
//   - packager: Template package reading and atomic writing (directory or zip)
//   - tmplconf: config.yaml decoding and validation
//   - schema: JSON schema validation with docma's custom formats
//   - params: Render parameter layering, merging and dotted lookup
//   - plugins: Dotted-name plugin catalogs and the filter/format registries
//   - render: Template rendering context and function map
//   - datasrc: Tabular data providers (files, parameters, SQL queries)
//   - generator: Dynamic content (swatches, QR codes, charts)
//   - importer: Compile-time import of remote content
//   - fetcher: Render-time URL resolution for documents and images
//   - transfer: Bounded HTTP and S3 transfer with retries
//   - htmldoc: HTML concatenation, metadata injection and image embedding
//   - metadata: Document metadata in HTML and PDF forms
//   - pdf: HTML to PDF conversion and PDF post-processing
//   - pipeline: Package rendering to HTML, PDF and batches
//   - scaffolding: New template source directories
//   - watcher: Debounced file system monitoring
//
// Ambient packages (config, errors, logging, monitoring, version) are
// shared by all of the above and by the cmd package.
//
// # Inter-Package Communication
//
//   - The compiler writes packages through packager and validates them with tmplconf and schema
//   - The pipeline opens packages, builds a render context and selects documents
//   - Rendered documents reference docma: and remote URLs that fetcher resolves through plugins
//   - Errors cross package boundaries as errors.DocmaError values tagged with a kind
//
// For detailed documentation, see the individual package documentation.
package internal
