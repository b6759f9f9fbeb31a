package extraction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/context-engine/models"
)

func parseStories(t *testing.T, source string) *sourceFile {
	t.Helper()
	f, err := parseTSX(context.Background(), []byte(source))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return f
}

func TestExtractStoriesFiltering(t *testing.T) {
	source := `
const meta = {
  title: "Components/Alert",
  component: Alert,
}
export default meta

export const Default = {
  args: { title: "Heads up" },
}

export const AllVariants = {
  args: { title: "Everything" },
}

export const Showcase = {
  args: { title: "Showcase" },
}

export const KitchenSink = {
  args: { title: "Sink" },
}

export const Hidden = {
  args: { title: "Hidden" },
  parameters: { chromatic: { disableSnapshot: true } },
}

export const WithDescription = {
  args: { title: "Note", description: "More detail" },
}
`
	f := parseStories(t, source)
	stories := extractStories(f, "Alert")

	require.Len(t, stories, 2)
	assert.Equal(t, "Default", stories[0].Title)
	assert.Equal(t, "WithDescription", stories[1].Title)
}

func TestExtractStoriesClassification(t *testing.T) {
	source := `
const meta = { component: Counter }
export default meta

export const Default = {
  args: { label: "Count" },
}

export const Themed = {
  args: { label: "Count", theme: "dark" },
}

export const Interactive = {
  render: (args) => {
    const [count, setCount] = useState(0)
    return <Counter {...args} value={count} onIncrement={() => setCount(count + 1)} />
  },
}
`
	f := parseStories(t, source)
	stories := extractStories(f, "Counter")

	require.Len(t, stories, 3)
	assert.Equal(t, models.StoryComplexityMinimal, stories[0].Complexity)
	assert.Equal(t, models.StoryComplexityCommon, stories[1].Complexity)
	assert.Equal(t, models.StoryComplexityAdvanced, stories[2].Complexity)
	assert.Contains(t, stories[2].Code, "useState")
}

func TestExtractStoriesRenderCode(t *testing.T) {
	source := `
const meta = { component: Banner }
export default meta

export const WithAction = {
  render: (args) => (
    <Banner {...args}>
      <Button>Undo</Button>
    </Banner>
  ),
}
`
	f := parseStories(t, source)
	stories := extractStories(f, "Banner")

	require.Len(t, stories, 1)
	assert.Contains(t, stories[0].Code, "<Banner {...args}>")
	assert.Contains(t, stories[0].Code, "<Button>Undo</Button>")
	assert.NotContains(t, stories[0].Code, "render:")
}

func TestSynthesizedStoryCode(t *testing.T) {
	source := `
const meta = {
  component: Field,
  args: { size: "md" },
}
export default meta

export const Default = {
  args: {
    label: "Email",
    required: true,
    optionalHint: false,
    maxLength: 120,
    icon: <Mail />,
    onChange: () => {},
    children: "user@example.com",
  },
}
`
	f := parseStories(t, source)
	stories := extractStories(f, "Field")

	require.Len(t, stories, 1)
	code := stories[0].Code
	assert.Contains(t, code, `size="md"`)
	assert.Contains(t, code, `label="Email"`)
	assert.Contains(t, code, " required")
	assert.Contains(t, code, "optionalHint={false}")
	assert.Contains(t, code, "maxLength={120}")
	assert.Contains(t, code, "icon={<Mail />}")
	assert.NotContains(t, code, "onChange")
	assert.Contains(t, code, ">user@example.com</Field>")
}

func TestSynthesizedStoryCodeSelfClosing(t *testing.T) {
	source := `
const meta = { component: Avatar }
export default meta

export const Default = {
  args: { src: "/me.png" },
}
`
	f := parseStories(t, source)
	stories := extractStories(f, "Avatar")

	require.Len(t, stories, 1)
	assert.Equal(t, `<Avatar src="/me.png" />`, stories[0].Code)
}

func TestStoryArgsOverrideMetaArgs(t *testing.T) {
	source := `
const meta = {
  component: Tag,
  args: { tone: "neutral", children: "Tag" },
}
export default meta

export const Danger = {
  args: { tone: "danger" },
}
`
	f := parseStories(t, source)
	stories := extractStories(f, "Tag")

	require.Len(t, stories, 1)
	assert.Equal(t, `<Tag tone="danger">Tag</Tag>`, stories[0].Code)
}
