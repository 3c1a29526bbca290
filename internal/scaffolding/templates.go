package scaffolding

// File is one scaffold file. Content is a text/template using [[ ]]
// delimiters so that the {{ }} actions of the generated template are
// written through untouched.
type File struct {
	Path    string
	Content string
}

// Parameter is a scaffold setting. Values come from -p pairs, then an
// interactive prompt, then the default.
type Parameter struct {
	Name        string
	Default     string
	Description string
}

// Parameters lists the settings a scaffold accepts. A blank default is
// derived from the target directory.
var Parameters = []Parameter{
	{Name: "template_id", Description: "Template identifier"},
	{Name: "description", Default: "A docma document template", Description: "One line description"},
	{Name: "owner", Default: "Unknown", Description: "Template owner"},
	{Name: "version", Default: "1.0.0", Description: "Semantic version of the template"},
	{Name: "title", Default: "Untitled document", Description: "Document title metadata"},
}

// Files is the template source tree a scaffold produces.
var Files = []File{
	{Path: "config.yaml", Content: configYAML},
	{Path: "README.md", Content: readme},
	{Path: "content/cover.html", Content: coverHTML},
	{Path: "content/body.md", Content: bodyMD},
	{Path: "content/styles.css", Content: stylesCSS},
	{Path: "content/print.css", Content: printCSS},
	{Path: "overlays/draft.html", Content: draftHTML},
	{Path: "queries/example.query.yaml", Content: exampleQuery},
}

const configYAML = `# Template configuration for [[ .template_id ]].
description: [[ quote .description ]]
owner: [[ quote .owner ]]
version: [[ quote .version ]]

documents:
  - content/cover.html
  - src: content/body.html
    if: '{{ ne .summary_only true }}'

exclude:
  - README.md

options:
  stylesheets:
    - content/print.css

metadata:
  title: [[ quote .title ]]
  author: [[ quote .owner ]]
  subject: '{{ .subject }}'

parameters:
  defaults:
    subject: [[ quote .description ]]
    summary_only: false
  schema:
    type: object
    required: [subject]
    properties:
      subject: {type: string, minLength: 1}
      summary_only: {type: boolean}

overlays:
  draft: overlays/draft.html
  confidential: {text: CONFIDENTIAL, desc: 'rot:45, op:0.2, scale:0.8 abs'}
`

const readme = `# [[ .template_id ]]

[[ .description ]]

Compile and render with:

    docma compile -i [[ .dir ]] -t [[ .template_id ]].zip
    docma html -t [[ .template_id ]].zip -p subject="Quarterly report"
    docma pdf -t [[ .template_id ]].zip -o [[ .template_id ]].pdf --stamp draft
`

const coverHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <link rel="stylesheet" href="styles.css">
</head>
<body>
  <section class="cover">
    <h1>[[ html .title ]]</h1>
    <p class="subject">{{ .subject }}</p>
    <img src="docma:swatch?width=600&amp;height=8&amp;color=steelblue" alt="">
  </section>
</body>
</html>
`

const bodyMD = `# {{ .subject }}

This document was generated from the [[ .template_id ]] template.

| Parameter | Value |
|-----------|-------|
| Subject | {{ .subject }} |
`

const stylesCSS = `body { font-family: sans-serif; margin: 2cm; }
.cover { page-break-after: always; text-align: center; }
.subject { color: #555; }
`

const printCSS = `@page { size: A4; margin: 2cm; }
`

const draftHTML = `<html><body style="display:flex;align-items:center;justify-content:center;height:100vh">
<p style="font-size:96pt;color:rgba(200,0,0,0.15);transform:rotate(-45deg)">DRAFT</p>
</body></html>
`

const exampleQuery = `description: [[ quote (print "Example query for " .template_id) ]]
query:
  text: 'SELECT name, amount FROM sales WHERE region = {{ param "region" }}'
parameters:
  defaults:
    region: north
options:
  row_limit: 1000
`
