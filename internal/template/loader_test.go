package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_BasicDocument(t *testing.T) {
	doc, err := Parse([]byte(`
resources:
  vpc:
    type: aws:ec2/vpc
    properties:
      cidrBlock: 10.0.0.0/16
      enableDnsHostnames: true
  subnet:
    type: aws:ec2/subnet
    dependsOn: [vpc]
    properties:
      cidrBlock: 10.0.1.0/24

outputs:
  network: vpc
`), "main.yaml")
	require.NoError(t, err)

	require.Len(t, doc.Resources, 2)

	vpc := doc.Resource("vpc")
	require.NotNil(t, vpc)
	assert.Equal(t, "aws:ec2/vpc", vpc.Type)
	assert.Equal(t, "aws", vpc.ProviderName())
	assert.Equal(t, 0, vpc.DeclIndex)
	assert.Equal(t, "10.0.0.0/16", vpc.Properties["cidrBlock"])
	assert.Equal(t, true, vpc.Properties["enableDnsHostnames"])

	subnet := doc.Resource("subnet")
	require.NotNil(t, subnet)
	assert.Equal(t, []string{"vpc"}, subnet.DependsOn)
	assert.Equal(t, 1, subnet.DeclIndex)

	assert.Equal(t, "vpc", doc.Outputs["network"])
}

func TestParse_RefIntrinsic(t *testing.T) {
	doc, err := Parse([]byte(`
resources:
  vpc:
    type: aws:ec2/vpc
  subnet:
    type: aws:ec2/subnet
    properties:
      vpcId: !Ref vpc
`), "main.yaml")
	require.NoError(t, err)

	subnet := doc.Resource("subnet")
	assert.Equal(t, "ref://vpc/id", subnet.Properties["vpcId"])
}

func TestParse_GetAttIntrinsic(t *testing.T) {
	doc, err := Parse([]byte(`
resources:
  db:
    type: aws:rds/instance
  app:
    type: aws:ec2/instance
    properties:
      dbHost: !GetAtt db.endpointAddress
      dbHostAlt: !GetAtt [db, endpointAddress]
      nested:
        - !GetAtt db.port
`), "main.yaml")
	require.NoError(t, err)

	app := doc.Resource("app")
	assert.Equal(t, "ref://db/endpointAddress", app.Properties["dbHost"])
	assert.Equal(t, "ref://db/endpointAddress", app.Properties["dbHostAlt"])
	assert.Equal(t, []any{"ref://db/port"}, app.Properties["nested"])
}

func TestParse_OutputsWithIntrinsics(t *testing.T) {
	doc, err := Parse([]byte(`
resources:
  alb:
    type: aws:elbv2/loadBalancer
outputs:
  url: !GetAtt alb.dnsName
  id: !Ref alb
`), "main.yaml")
	require.NoError(t, err)

	assert.Equal(t, "ref://alb/dnsName", doc.Outputs["url"])
	assert.Equal(t, "ref://alb/id", doc.Outputs["id"])
}

func TestParse_DuplicateResourceID(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  vpc:
    type: aws:ec2/vpc
  vpc:
    type: aws:ec2/vpc
`), "main.yaml")
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, parseErr.Msg, "duplicate resource id")
	assert.Equal(t, "main.yaml", parseErr.File)
	assert.Greater(t, parseErr.Line, 0)
}

func TestParse_DuplicatePropertyKey(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  vpc:
    type: aws:ec2/vpc
    properties:
      cidrBlock: 10.0.0.0/16
      cidrBlock: 10.1.0.0/16
`), "main.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestParse_MissingType(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  vpc:
    properties:
      cidrBlock: 10.0.0.0/16
`), "main.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing a type")
}

func TestParse_UnknownTopLevelKey(t *testing.T) {
	_, err := Parse([]byte(`
variables:
  x: 1
`), "main.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown top-level key")
}

func TestParse_UnknownResourceKey(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  vpc:
    type: aws:ec2/vpc
    count: 3
`), "main.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown key "count"`)
}

func TestParse_MalformedGetAtt(t *testing.T) {
	_, err := Parse([]byte(`
resources:
  app:
    type: aws:ec2/instance
    properties:
      host: !GetAtt noattribute
`), "main.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "!GetAtt")
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("resources: [unbalanced"), "main.yaml")
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestParse_ExplicitProviderOverride(t *testing.T) {
	doc, err := Parse([]byte(`
resources:
  item:
    type: custom/thing
    provider: memory
`), "main.yaml")
	require.NoError(t, err)

	item := doc.Resource("item")
	assert.Equal(t, "memory", item.ProviderName())
}

func TestParse_AnchorsAndAliases(t *testing.T) {
	doc, err := Parse([]byte(`
resources:
  a:
    type: memory:item
    properties:
      tags: &common
        env: prod
  b:
    type: memory:item
    properties:
      tags: *common
`), "main.yaml")
	require.NoError(t, err)

	a := doc.Resource("a")
	b := doc.Resource("b")
	assert.Equal(t, a.Properties["tags"], b.Properties["tags"])
}

func TestLoad_WordpressExample(t *testing.T) {
	doc, err := Load("../../examples/wordpress.yaml")
	require.NoError(t, err)

	// The target group must point at the web instance, or the load
	// balancer forwards to an empty group.
	tg := doc.Resource("webTargets")
	require.NotNil(t, tg)
	assert.Equal(t, []any{"ref://web/id"}, tg.Properties["targets"])
}

func TestLoad_FromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
resources:
  vpc:
    type: aws:ec2/vpc
`), 0644))

	doc, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, doc.Resources, 1)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
